package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"codejudge/internal/cli/config"
	httpclient "codejudge/internal/cli/http"
	"codejudge/internal/cli/local"
	"codejudge/internal/judge/model"
)

const defaultConfigPath = "configs/cli.yaml"

const usage = `usage: judge-cli [-config path] <command> [flags]

commands:
  grade      grade a source file against <n>.in/<n>.out pairs locally
  submit     submit a source file to the judge service
  status     show the status of a submission
  results    list per-test results of a submission
  languages  list supported languages
`

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	baseURL := flag.String("base", "", "Override base URL")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flag.Arg(0), flag.Args()[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, cmd string, args []string, out io.Writer) error {
	client := httpclient.New(cfg.BaseURL, cfg.Timeout, cfg.UserID)
	pretty := cfg.PrettyJSON != nil && *cfg.PrettyJSON

	switch cmd {
	case "grade":
		fs := flag.NewFlagSet("grade", flag.ContinueOnError)
		lang := fs.String("lang", "", "Language id or name")
		src := fs.String("src", "", "Source file")
		tests := fs.String("tests", "", "Directory of <n>.in/<n>.out pairs")
		timeLimit := fs.Int("time", 1, "Run time limit in seconds")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *lang == "" || *src == "" || *tests == "" {
			return fmt.Errorf("grade requires -lang, -src and -tests")
		}
		results, err := local.Grade(ctx, local.Options{
			Language:       *lang,
			SourcePath:     *src,
			TestDir:        *tests,
			TimeLimit:      *timeLimit,
			WorkRoot:       cfg.WorkRoot,
			CompileTimeout: cfg.CompileTimeout,
			Languages:      cfg.Languages,
		})
		if err != nil {
			return err
		}
		return printResults(out, results)

	case "submit":
		fs := flag.NewFlagSet("submit", flag.ContinueOnError)
		lang := fs.String("lang", "", "Language id or name")
		src := fs.String("src", "", "Source file")
		problem := fs.Int64("problem", 0, "Problem id")
		wait := fs.Bool("wait", false, "Poll until grading finishes")
		if err := fs.Parse(args); err != nil {
			return err
		}
		code, err := os.ReadFile(*src)
		if err != nil {
			return fmt.Errorf("read source failed: %w", err)
		}
		status, err := client.Submit(ctx, httpclient.SubmitRequest{ProblemID: *problem, Language: *lang, Code: string(code)})
		if err != nil {
			return err
		}
		if *wait {
			if status, err = client.WaitFinal(ctx, status.SubmissionID, cfg.PollInterval); err != nil {
				return err
			}
		}
		return printJSON(out, status, pretty)

	case "status", "results":
		if len(args) != 1 {
			return fmt.Errorf("%s requires a submission id", cmd)
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid submission id %q", args[0])
		}
		if cmd == "status" {
			status, err := client.Status(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(out, status, pretty)
		}
		results, err := client.Results(ctx, id)
		if err != nil {
			return err
		}
		return printResults(out, results)

	case "languages":
		langs, err := client.Languages(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, langs, pretty)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func printResults(out io.Writer, results []model.Result) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TEST\tVERDICT\tTIME(s)")
	for _, r := range results {
		fmt.Fprintf(tw, "%d\t%s\t%.3f\n", r.TestCaseID, r.Verdict.Short(), r.ExecutionTime)
	}
	fmt.Fprintf(tw, "overall\t%s\t\n", model.Summarize(results))
	return tw.Flush()
}

func printJSON(out io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(out)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
