// moctl is the operator-facing control binary: it starts a sequencer
// daemon (optionally backgrounded), stops a running one, and prints a
// node's public verifying key for operators wiring up peer configs.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/0xkanth/mojave-sequencer/internal/config"
	"github.com/0xkanth/mojave-sequencer/internal/logging"
	"github.com/0xkanth/mojave-sequencer/internal/signature"
	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

const pidFileName = "moctl.pid"

func main() {
	root := &cobra.Command{
		Use:   "moctl",
		Short: "control a mojave sequencer daemon",
	}
	root.AddCommand(newInitCmd(), newStopCmd(), newPubkeyCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newInitCmd() *cobra.Command {
	var (
		datadir     string
		httpAddr    string
		httpPort    int
		authrpcAddr string
		authrpcPort int
		metricsAddr string
		network     string
		noDaemon    bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "start a sequencer daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(datadir, 0o755); err != nil {
				return fmt.Errorf("create datadir: %w", err)
			}
			configPath, err := writeRuntimeConfig(datadir, httpAddr, httpPort, authrpcAddr, authrpcPort, metricsAddr, network)
			if err != nil {
				return err
			}

			if noDaemon {
				return execInForeground(configPath)
			}
			return execInBackground(datadir, configPath)
		},
	}

	cmd.Flags().StringVar(&datadir, "datadir", "./data", "node data directory")
	cmd.Flags().StringVar(&httpAddr, "http.addr", "127.0.0.1", "RPC listen address")
	cmd.Flags().IntVar(&httpPort, "http.port", 8551, "RPC listen port")
	cmd.Flags().StringVar(&authrpcAddr, "authrpc.addr", "127.0.0.1", "health-check listen address")
	cmd.Flags().IntVar(&authrpcPort, "authrpc.port", 8552, "health-check listen port")
	cmd.Flags().StringVar(&metricsAddr, "metrics", "127.0.0.1:9090", "metrics listen address")
	cmd.Flags().StringVar(&network, "network", "standalone", "cluster mode: standalone or k8s")
	cmd.Flags().BoolVar(&noDaemon, "no-daemon", false, "run in the foreground instead of backgrounding")

	return cmd
}

// writeRuntimeConfig writes a minimal TOML config built from the flags
// to <datadir>/sequencer.toml, replacing any file already there. Keys
// the flags do not cover (signing key, postgres DSN, peer URLs) are not
// carried over from a previous file; koanf's environment layer still
// applies on top at daemon startup.
func writeRuntimeConfig(datadir, httpAddr string, httpPort int, authrpcAddr string, authrpcPort int, metricsAddr, network string) (string, error) {
	configPath := filepath.Join(datadir, "sequencer.toml")
	clusterMode := strings.EqualFold(network, "k8s")

	contents := fmt.Sprintf(`[node]
datadir = %q

[rpc]
address = "%s:%d"

[health]
address = "%s:%d"

[metrics]
address = %q

[leader]
cluster_mode = %t
`, datadir, httpAddr, httpPort, authrpcAddr, authrpcPort, metricsAddr, clusterMode)

	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		return "", fmt.Errorf("write runtime config: %w", err)
	}
	return configPath, nil
}

func execInForeground(configPath string) error {
	bin, err := exec.LookPath("sequencer")
	if err != nil {
		return fmt.Errorf("locate sequencer binary (build cmd/sequencer first): %w", err)
	}
	process, err := os.StartProcess(bin, []string{bin, "-config", configPath}, &os.ProcAttr{
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
	})
	if err != nil {
		return fmt.Errorf("start sequencer: %w", err)
	}
	_, err = process.Wait()
	return err
}

func execInBackground(datadir, configPath string) error {
	bin, err := exec.LookPath("sequencer")
	if err != nil {
		return fmt.Errorf("locate sequencer binary (build cmd/sequencer first): %w", err)
	}

	logPath := filepath.Join(datadir, "sequencer.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open daemon log: %w", err)
	}
	defer logFile.Close()

	process, err := os.StartProcess(bin, []string{bin, "-config", configPath}, &os.ProcAttr{
		Files: []*os.File{nil, logFile, logFile},
	})
	if err != nil {
		return fmt.Errorf("start sequencer: %w", err)
	}

	pidPath := filepath.Join(datadir, pidFileName)
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(process.Pid)), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}

	fmt.Printf("sequencer started, pid %d, logs at %s\n", process.Pid, logPath)
	return nil
}

func newStopCmd() *cobra.Command {
	var datadir string
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "stop a running sequencer daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath := filepath.Join(datadir, pidFileName)
			raw, err := os.ReadFile(pidPath)
			if err != nil {
				return fmt.Errorf("read pid file %s: %w", pidPath, err)
			}
			pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
			if err != nil {
				return fmt.Errorf("parse pid file: %w", err)
			}
			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("find process %d: %w", pid, err)
			}
			if err := process.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("signal process %d: %w", pid, err)
			}
			os.Remove(pidPath)
			fmt.Printf("sent SIGTERM to pid %d\n", pid)
			return nil
		},
	}
	cmd.Flags().StringVar(&datadir, "datadir", "./data", "node data directory")
	return cmd
}

func newPubkeyCmd() *cobra.Command {
	var datadir string
	cmd := &cobra.Command{
		Use:   "pubkey",
		Short: "print this node's verifying key",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := filepath.Join(datadir, "sequencer.toml")
			logger := logging.Init()
			ko, err := config.Load(logger, configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg := config.FromKoanf(ko)
			if cfg.SigningKeyHex == "" {
				return fmt.Errorf("no signing.key configured in %s", configPath)
			}
			keyBytes, err := hex.DecodeString(cfg.SigningKeyHex)
			if err != nil {
				return fmt.Errorf("decode signing key: %w", err)
			}
			signer, err := signature.FromSlice(rolluptypes.Scheme(cfg.SigningScheme), keyBytes)
			if err != nil {
				return fmt.Errorf("build signer: %w", err)
			}
			fmt.Println(hex.EncodeToString(signer.VerifyingKey()))
			return nil
		},
	}
	cmd.Flags().StringVar(&datadir, "datadir", "./data", "node data directory")
	return cmd
}
