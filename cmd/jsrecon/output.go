package main

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/PentesterFlow/JSRecon/internal/openapi"
	"github.com/PentesterFlow/JSRecon/internal/output"
	"github.com/PentesterFlow/JSRecon/internal/report"
	"github.com/PentesterFlow/JSRecon/pkg/jsrecon"
)

// writeFiles writes the results file, the HTML report and the OpenAPI
// document of rep. A file whose configured name is empty is skipped.
func writeFiles(ctx context.Context, config *jsrecon.Config, rep *output.Report) ([]string, error) {
	var written []string

	if path := config.OutputPath(config.Output.ResultsFile); path != "" {
		if err := output.WriteResultsFile(path, rep.Result, config.Output.Pretty); err != nil {
			return written, fmt.Errorf("failed to write results: %w", err)
		}
		written = append(written, path)
	}

	if path := config.OutputPath(config.Output.ReportFile); path != "" {
		if err := writeReport(path, rep); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if path := config.OutputPath(config.Output.OpenAPIFile); path != "" {
		if _, err := writeOpenAPI(ctx, path, rep); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	return written, nil
}

func writeReport(path string, rep *output.Report) error {
	if err := report.HTML(path, rep); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// writeOpenAPI generates the document for rep. A web target becomes the
// document's server. Save refuses a document that does not validate.
func writeOpenAPI(ctx context.Context, path string, rep *output.Report) (*openapi3.T, error) {
	var opts []openapi.Option
	if origin := origin(rep.Target); origin != "" {
		opts = append(opts, openapi.WithServer(origin, "Target application"))
	}

	doc := openapi.Generate(rep.Result, opts...)
	if err := openapi.Save(ctx, doc, path); err != nil {
		return nil, fmt.Errorf("failed to write openapi document: %w", err)
	}
	return doc, nil
}

// origin returns scheme://host of an http(s) target, or "".
func origin(target string) string {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// printResults writes rep to w in the configured format. Stream mode emits
// one event per endpoint, external host and error.
func printResults(w io.Writer, config *jsrecon.Config, rep *output.Report) error {
	writer := output.NewWriter(w, config.WriterConfig())

	if !config.Output.Stream {
		if err := writer.WriteReport(rep); err != nil {
			return err
		}
		return writer.Flush()
	}

	if err := writer.WriteResult(rep.Result); err != nil {
		return err
	}
	for _, host := range output.Hosts(rep.External) {
		if err := writer.WriteExternal(host, rep.External[host]); err != nil {
			return err
		}
	}
	for i := range rep.Errors {
		if err := writer.WriteError(&rep.Errors[i]); err != nil {
			return err
		}
	}
	return writer.Flush()
}

// loadReport reads the input of the report and openapi commands: the stored
// run of --run, or else a results file.
func loadReport(config *jsrecon.Config) (*output.Report, error) {
	if fromRun != "" {
		return loadRun(config.State.FilePath, fromRun)
	}

	path := inputFile
	if path == "" {
		path = config.OutputPath(config.Output.ResultsFile)
	}
	res, err := output.ReadResultsFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}

	summary := res.Summarize()
	return &output.Report{
		Result:   res,
		External: map[string][]string{},
		Stats: output.Stats{
			Files:      summary.DistinctFiles,
			Endpoints:  summary.Endpoints,
			WithParams: summary.WithParams,
			WithBodies: summary.WithBodies,
		},
	}, nil
}

func loadRun(storePath, target string) (*output.Report, error) {
	store, err := jsrecon.OpenStore(storePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", storePath, err)
	}
	defer store.Close()

	run, err := store.Load(target)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("no run stored for %s in %s", target, storePath)
	}

	summary := run.Result.Summarize()
	ext := 0
	for _, urls := range run.External {
		ext += len(urls)
	}
	return &output.Report{
		Target:      run.Target,
		StartedAt:   run.StartedAt,
		CompletedAt: run.FinishedAt,
		Result:      run.Result,
		External:    run.External,
		Stats: output.Stats{
			Files:        run.Stats.Files,
			Bytes:        run.Stats.Bytes,
			Endpoints:    summary.Endpoints,
			WithParams:   summary.WithParams,
			WithBodies:   summary.WithBodies,
			ExternalURLs: ext,
			Facts:        run.Stats.Facts,
			Recoveries:   run.Stats.Recoveries,
			ErrorCount:   int(run.Stats.Errors),
			Duration:     run.Stats.Duration,
		},
	}, nil
}
