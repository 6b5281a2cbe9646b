// Copyright 2025 The kubegate Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"

	"github.com/kubegate/kubegate/pkg/agent"
	"github.com/kubegate/kubegate/pkg/executor"
	"github.com/kubegate/kubegate/pkg/gateway"
	"github.com/kubegate/kubegate/pkg/journal"
	"github.com/kubegate/kubegate/pkg/kube"
	"github.com/kubegate/kubegate/pkg/llm"
	"github.com/kubegate/kubegate/pkg/server"
)

// Using the defaults from goreleaser as per https://goreleaser.com/cookbooks/using-main.version/
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type Options struct {
	// ListenAddress is where the HTTP API binds.
	ListenAddress string `json:"listenAddress,omitempty"`
	// KubeConfigPath is the path to the kubeconfig file.
	// If not provided, the default kubeconfig path will be used.
	KubeConfigPath string `json:"kubeConfigPath,omitempty"`
	// KubectlBin overrides the kubectl binary name or path.
	KubectlBin string `json:"kubectlBin,omitempty"`

	// SkipConfirm disables the confirmation gate for mutating instructions.
	SkipConfirm bool `json:"skipConfirm,omitempty"`
	// TimeoutSeconds is the default per-command execution timeout.
	TimeoutSeconds int `json:"timeoutSeconds,omitempty"`

	// JournalPath is where the request journal is written.
	JournalPath string `json:"journalPath,omitempty"`

	ModelID       string `json:"model,omitempty"`
	MaxIterations int    `json:"maxIterations,omitempty"`
	MaxToolCalls  int    `json:"maxToolCalls,omitempty"`
}

var defaultConfigPaths = []string{
	filepath.Join("{CONFIG}", "kubegate", "config.yaml"),
	filepath.Join("{HOME}", ".config", "kubegate", "config.yaml"),
}

func (o *Options) InitDefaults() {
	o.ListenAddress = "localhost:8686"
	o.KubeConfigPath = ""
	o.KubectlBin = "kubectl"
	// by default, mutating instructions require explicit confirmation.
	o.SkipConfirm = false
	o.TimeoutSeconds = 60
	o.JournalPath = filepath.Join(os.TempDir(), "kubegate-journal.jsonl")
	o.ModelID = ""
	o.MaxIterations = agent.DefaultMaxIterations
	o.MaxToolCalls = agent.DefaultMaxToolCalls
}

func (o *Options) LoadConfiguration(b []byte) error {
	if err := yaml.Unmarshal(b, &o); err != nil {
		return fmt.Errorf("parsing configuration: %w", err)
	}
	return nil
}

func (o *Options) LoadConfigurationFile() error {
	for _, configPath := range defaultConfigPaths {
		pathWithPlaceholdersExpanded := configPath

		if strings.Contains(pathWithPlaceholdersExpanded, "{CONFIG}") {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("getting user config directory (for config file path %q): %w", configPath, err)
			}
			pathWithPlaceholdersExpanded = strings.ReplaceAll(pathWithPlaceholdersExpanded, "{CONFIG}", configDir)
		}

		if strings.Contains(pathWithPlaceholdersExpanded, "{HOME}") {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("getting user home directory (for config file path %q): %w", configPath, err)
			}
			pathWithPlaceholdersExpanded = strings.ReplaceAll(pathWithPlaceholdersExpanded, "{HOME}", homeDir)
		}

		configPath = filepath.Clean(pathWithPlaceholdersExpanded)
		configBytes, err := os.ReadFile(configPath)
		if err != nil {
			if os.IsNotExist(err) {
				// missing config files are optional
			} else {
				fmt.Fprintf(os.Stderr, "warning: could not load defaults from %q: %v\n", configPath, err)
			}
		} else if len(configBytes) > 0 {
			if err := o.LoadConfiguration(configBytes); err != nil {
				fmt.Fprintf(os.Stderr, "warning: error loading configuration from %q: %v\n", configPath, err)
			}
		}
	}
	return nil
}

func (o *Options) bindCLIFlags(f *pflag.FlagSet) {
	f.StringVar(&o.ListenAddress, "listen-address", o.ListenAddress, "address for the HTTP API to listen on")
	f.StringVar(&o.KubeConfigPath, "kubeconfig", o.KubeConfigPath, "path to kubeconfig file")
	f.StringVar(&o.KubectlBin, "kubectl-bin", o.KubectlBin, "kubectl binary name or path")
	f.BoolVar(&o.SkipConfirm, "skip-confirm", o.SkipConfirm, "(dangerous) execute mutating instructions without requiring confirmation")
	f.IntVar(&o.TimeoutSeconds, "timeout", o.TimeoutSeconds, "default per-command execution timeout in seconds")
	f.StringVar(&o.JournalPath, "journal-path", o.JournalPath, "path to the request journal file")
	f.StringVar(&o.ModelID, "model", o.ModelID, "language model for the ask command")
	f.IntVar(&o.MaxIterations, "max-iterations", o.MaxIterations, "maximum model exchanges per ask run")
	f.IntVar(&o.MaxToolCalls, "max-tool-calls", o.MaxToolCalls, "maximum tool invocations per ask run")
}

func BuildRootCommand(opt *Options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kubegate",
		Short: "A validating gateway for kubectl operations",
		Long:  "kubegate exposes a fixed catalog of kubectl operations behind parameter validation, a confirmation gate for mutations, and an audit journal.",
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *opt)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "ask [goal]",
		Short: "Answer a question about the cluster using the model-driven loop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), *opt, args[0])
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "mcp",
		Short: "Expose the instruction catalog as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCPServer(cmd.Context(), *opt)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of kubegate",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("version: %s\ncommit: %s\ndate: %s\n", version, commit, date)
		},
	})

	opt.bindCLIFlags(rootCmd.PersistentFlags())
	return rootCmd
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		// restore default behavior for a second signal
		signal.Stop(make(chan os.Signal))
		cancel()
		klog.Flush()
		fmt.Fprintf(os.Stderr, "\nReceived signal, shutting down gracefully... (press Ctrl+C again to force)\n")
	}()

	if err := run(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}

func run(ctx context.Context) error {
	// klog setup must happen before cobra parses any flags
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	defer klog.Flush()

	// .env keeps credentials like OPENAI_API_KEY out of the process table
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: loading .env: %v\n", err)
	}

	var opt Options
	opt.InitDefaults()

	if err := opt.LoadConfigurationFile(); err != nil {
		return fmt.Errorf("failed to load config file: %w", err)
	}

	rootCmd := BuildRootCommand(&opt)

	rootCmd.PersistentFlags().AddGoFlag(klogFlags.Lookup("v"))
	rootCmd.PersistentFlags().AddGoFlag(klogFlags.Lookup("alsologtostderr"))

	return rootCmd.ExecuteContext(ctx)
}

func resolveKubeConfigPath(opt *Options) error {
	switch {
	case opt.KubeConfigPath != "":
		// Already set from flag or config
	case os.Getenv("KUBECONFIG") != "":
		opt.KubeConfigPath = os.Getenv("KUBECONFIG")
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		opt.KubeConfigPath = filepath.Join(home, ".kube", "config")
	}

	// Absolute path so kubectl runs from any working directory.
	p, err := filepath.Abs(opt.KubeConfigPath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for kubeconfig file %q: %w", opt.KubeConfigPath, err)
	}
	opt.KubeConfigPath = p

	return nil
}

// buildGateway assembles the execution pipeline shared by every command.
// The returned closer flushes the journal.
func buildGateway(opt Options) (*gateway.Gateway, func(), error) {
	if err := resolveKubeConfigPath(&opt); err != nil {
		return nil, nil, fmt.Errorf("failed to resolve kubeconfig path: %w", err)
	}

	var recorder journal.Recorder
	if opt.JournalPath != "" {
		fileRecorder, err := journal.NewFileRecorder(opt.JournalPath)
		if err != nil {
			return nil, nil, fmt.Errorf("creating journal recorder: %w", err)
		}
		recorder = fileRecorder
	} else {
		recorder = &journal.LogRecorder{}
	}

	exec := &executor.KubectlExecutor{
		KubectlBin: opt.KubectlBin,
		Kubeconfig: opt.KubeConfigPath,
	}

	gw := gateway.New(exec)
	gw.RequireConfirm = !opt.SkipConfirm
	gw.Recorder = recorder
	gw.ContextCache = kube.NewContextCache(kube.ExecutorRefresher(exec), kube.DefaultTTL)
	if opt.TimeoutSeconds > 0 {
		gw.DefaultTimeout = time.Duration(opt.TimeoutSeconds) * time.Second
	}

	return gw, func() { recorder.Close() }, nil
}

func runServe(ctx context.Context, opt Options) error {
	gw, closeJournal, err := buildGateway(opt)
	if err != nil {
		return err
	}
	defer closeJournal()

	srv, err := server.New(gw, opt.ListenAddress)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

func runAsk(ctx context.Context, opt Options, goal string) error {
	gw, closeJournal, err := buildGateway(opt)
	if err != nil {
		return err
	}
	defer closeJournal()

	client, err := llm.NewOpenAIClient(ctx)
	if err != nil {
		return fmt.Errorf("creating llm client: %w", err)
	}
	defer client.Close()

	// The loop and anything it calls pick the recorder up from the context.
	ctx = journal.ContextWithRecorder(ctx, gw.Recorder)

	loop := &agent.Loop{
		Client:        client,
		Model:         opt.ModelID,
		Gateway:       gw,
		MaxIterations: opt.MaxIterations,
		MaxToolCalls:  opt.MaxToolCalls,
	}

	result, err := loop.Run(ctx, goal)
	if err != nil {
		return err
	}

	if result.Answer != "" {
		fmt.Println(result.Answer)
	}
	if result.Aborted != "" {
		fmt.Fprintf(os.Stderr, "stopped early (%s) after %d iterations and %d tool calls\n",
			result.Aborted, result.Iterations, result.ToolCalls)
	}
	return nil
}
