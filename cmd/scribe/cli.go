package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mediscribe/scribe/internal/config"
	"github.com/mediscribe/scribe/internal/errors"
	"github.com/mediscribe/scribe/internal/gemini"
	"github.com/mediscribe/scribe/internal/mcp"
	"github.com/mediscribe/scribe/internal/note"
	"github.com/mediscribe/scribe/internal/recording"
	"github.com/mediscribe/scribe/internal/store"
	"github.com/mediscribe/scribe/internal/transcribe"
	"github.com/mediscribe/scribe/internal/visit"
	"github.com/mediscribe/scribe/internal/web"
	"github.com/mediscribe/scribe/internal/workflow"
)

// stdout and stdin are swapped out in tests.
var (
	stdout io.Writer = os.Stdout
	stdin  io.Reader = os.Stdin
)

// newCLIApp creates the CLI application with all commands.
// cfg may be nil when only help or version output is needed.
func newCLIApp(cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "scribe",
		Usage:   "Clinical visit documentation assistant",
		Version: Version,
		Commands: []*cli.Command{
			serveCmd(cfg),
			mcpCmd(cfg),
			visitsCmd(cfg),
			synthesizeCmd(cfg),
			termsCmd(),
			transcribeCmd(cfg),
			recordCmd(cfg),
			resetCmd(cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// serveCmd runs the relay, app API and clinician UI.
func serveCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the transcription relay and clinician web app",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port", Aliases: []string{"p"}, Usage: "Override PORT"},
			&cli.StringFlag{Name: "bind", Usage: "Override BIND"},
		},
		Action: func(c *cli.Context) error {
			if port := c.String("port"); port != "" {
				cfg.Port = port
			}
			if bind := c.String("bind"); bind != "" {
				cfg.Bind = bind
			}
			if err := cfg.Validate(); err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}

			log := newLogger(cfg, os.Stdout)

			st, closeStore, err := openStore(c.Context, cfg, log)
			if err != nil {
				return outputError(err)
			}
			defer closeStore()

			stt := gemini.NewProvider(cfg.GeminiAPIKey, cfg.GeminiModel, gemini.WithLogger(log))
			log.Info().
				Bool("api_key_loaded", stt.KeyLoaded()).
				Str("model", stt.Model()).
				Msg("speech-to-text provider configured")

			capture := recording.NewPushCapture()
			client := transcribe.NewClient(cfg.RelayURL, cfg.HTTPTimeout(), transcribe.WithLogger(log))
			recorder := recording.NewController(capture, client, recording.WithLogger(log))
			orch := workflow.NewOrchestrator(st, note.NewHeuristicSynthesizer(cfg.SynthDelay()),
				workflow.WithRecorder(recorder),
				workflow.WithLogger(log),
			)

			e, err := web.NewServer(web.Deps{
				Orchestrator: orch,
				Recorder:     recorder,
				Capture:      capture,
				STT:          stt,
				Config:       cfg,
				Logger:       log,
				Version:      Version,
			})
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			return web.Run(e, cfg.Addr(), log)
		},
	}
}

// mcpCmd serves the visit and note tools over stdio.
func mcpCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP tool server on stdio",
		Action: func(c *cli.Context) error {
			// stdout carries the protocol
			log := newLogger(cfg, os.Stderr)

			if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
				log.Warn().Strs("tools", unknown).Msg("unknown tool names in DISABLED_TOOLS")
			}

			st, closeStore, err := openStore(c.Context, cfg, log)
			if err != nil {
				return outputError(err)
			}
			defer closeStore()

			return mcp.Run(st, note.NewHeuristicSynthesizer(cfg.SynthDelay()), cfg, Version)
		},
	}
}

// visitsCmd lists, fetches and exports stored visits.
func visitsCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "visits",
		Usage: "Inspect stored visits",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List visits, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Match patient name or chief complaint"},
					&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "Filter by status: in_progress|pending|approved"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: store.DefaultListLimit, Usage: "Max items"},
					&cli.IntFlag{Name: "offset", Value: 0, Usage: "Pagination offset"},
				},
				Action: func(c *cli.Context) error {
					return withStore(c, cfg, func(st *store.Store) error {
						output, err := st.ListPage(store.ListInput{
							Query:  c.String("query"),
							Status: c.String("status"),
							Limit:  c.Int("limit"),
							Offset: c.Int("offset"),
						})
						if err != nil {
							return outputError(err)
						}
						return outputJSON(output)
					})
				},
			},
			{
				Name:      "get",
				Usage:     "Fetch a visit by ID",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "no-transcript", Usage: "Exclude the transcript from output"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return outputError(errors.NewInvalidRequest("visit id is required"))
					}
					return withStore(c, cfg, func(st *store.Store) error {
						v, err := st.Get(c.Args().First())
						if err != nil {
							return outputError(err)
						}
						if c.Bool("no-transcript") {
							v.Transcript = ""
						}
						return outputJSON(v)
					})
				},
			},
			{
				Name:      "note",
				Usage:     "Export a visit's approved note",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: string(note.FormatText), Usage: "Format: text|markdown|html"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return outputError(errors.NewInvalidRequest("visit id is required"))
					}
					format, err := note.ParseFormat(c.String("format"))
					if err != nil {
						return outputError(errors.NewInvalidRequest(err.Error()))
					}
					return withStore(c, cfg, func(st *store.Store) error {
						v, err := st.Get(c.Args().First())
						if err != nil {
							return outputError(err)
						}
						if v.SOAPNote == nil {
							return outputError(errors.NewInvalidRequest(fmt.Sprintf("visit %s has no approved note", v.ID)))
						}
						content, err := note.Render(*v.SOAPNote, format)
						if err != nil {
							return outputError(errors.NewInternal(err))
						}
						_, err = fmt.Fprintln(stdout, content)
						return err
					})
				},
			},
		},
	}
}

// synthesizeCmd drafts a SOAP note from a transcript on stdin.
func synthesizeCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "synthesize",
		Usage: "Draft a SOAP note (reads the transcript from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "chief-complaint", Aliases: []string{"c"}, Usage: "Chief complaint for the note"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "json", Usage: "Format: json|text|markdown|html"},
			&cli.BoolFlag{Name: "no-delay", Usage: "Skip the simulated generation delay"},
		},
		Action: func(c *cli.Context) error {
			var transcript string
			if stdinHasData() {
				text, err := readStdin()
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				transcript = text
			}

			delay := cfg.SynthDelay()
			if c.Bool("no-delay") {
				delay = 0
			}
			n, err := note.NewHeuristicSynthesizer(delay).Synthesize(c.Context, note.Input{
				Transcript:     transcript,
				ChiefComplaint: c.String("chief-complaint"),
			})
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			if c.String("format") == "json" {
				return outputJSON(n)
			}
			format, err := note.ParseFormat(c.String("format"))
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			content, err := note.Render(n, format)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			_, err = fmt.Fprintln(stdout, content)
			return err
		},
	}
}

// termsCmd reports the clinical keywords in a transcript on stdin.
func termsCmd() *cli.Command {
	return &cli.Command{
		Name:  "terms",
		Usage: "Extract clinical terms (reads the transcript from stdin)",
		Action: func(c *cli.Context) error {
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("transcript must be piped via stdin"))
			}
			text, err := readStdin()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return outputJSON(map[string]any{
				"terms":    note.ExtractTerms(text),
				"sections": note.DetectSections(text),
				"missing":  note.MissingSections(text),
			})
		},
	}
}

// transcribeCmd sends an audio file to the relay, or straight to the provider with --direct.
func transcribeCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "transcribe",
		Usage:     "Transcribe an audio file",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "direct", Usage: "Call the speech-to-text provider instead of the relay"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("audio file path is required"))
			}
			path := c.Args().First()
			audio, err := os.ReadFile(path)
			if err != nil {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("read audio file: %v", err)))
			}
			if len(audio) == 0 {
				return outputError(errors.NewInvalidRequest("audio file is empty"))
			}

			var transcript string
			if c.Bool("direct") {
				log := newLogger(cfg, os.Stderr)
				stt := gemini.NewProvider(cfg.GeminiAPIKey, cfg.GeminiModel, gemini.WithLogger(log))
				transcript, err = stt.Transcribe(c.Context, audio, transcribe.MIMEType(path))
			} else {
				client := transcribe.NewClient(cfg.RelayURL, cfg.HTTPTimeout())
				transcript, err = client.Transcribe(c.Context, audio, filepath.Base(path))
			}
			if err != nil {
				return outputError(err)
			}

			return outputJSON(map[string]any{
				"transcript": transcript,
				"terms":      note.ExtractTerms(transcript),
			})
		},
	}
}

// recordOutput is what record prints once the visit reaches review.
type recordOutput struct {
	Visit    visit.Visit `json:"visit"`
	Approved bool        `json:"approved"`
}

// recordCmd captures the local microphone with ffmpeg and walks a visit through
// recording and review. Recording stops on Ctrl-C or after --duration.
func recordCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "record",
		Usage: "Record a visit from the local microphone",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "patient", Usage: "Patient name"},
			&cli.IntFlag{Name: "age", Usage: "Patient age"},
			&cli.StringFlag{Name: "complaint", Usage: "Chief complaint"},
			&cli.StringFlag{Name: "type", Usage: "Visit type"},
			&cli.DurationFlag{Name: "duration", Aliases: []string{"d"}, Usage: "Stop after this long (default: until Ctrl-C)"},
			&cli.BoolFlag{Name: "approve", Usage: "Approve the drafted note and save the visit"},
		},
		Action: func(c *cli.Context) error {
			log := newLogger(cfg, os.Stderr)

			st, closeStore, err := openStore(c.Context, cfg, log)
			if err != nil {
				return outputError(err)
			}
			defer closeStore()

			capture := recording.NewFFMPEGCapture(recording.FFMPEGConfig{
				Command:     cfg.FFMPEGCommand,
				InputFormat: cfg.AudioInputFormat,
				InputDevice: cfg.AudioInputDevice,
			})
			client := transcribe.NewClient(cfg.RelayURL, cfg.HTTPTimeout(), transcribe.WithLogger(log))
			recorder := recording.NewController(capture, client,
				recording.WithFilename(recording.FFMPEGFilename),
				recording.WithLogger(log),
			)
			orch := workflow.NewOrchestrator(st, note.NewHeuristicSynthesizer(cfg.SynthDelay()),
				workflow.WithRecorder(recorder),
				workflow.WithLogger(log),
			)

			active, err := orch.StartNewVisit(c.Context, workflow.PatientInfo{
				Name:      c.String("patient"),
				Age:       c.Int("age"),
				Complaint: c.String("complaint"),
				Type:      c.String("type"),
			})
			if err != nil {
				return outputError(err)
			}
			if err := orch.StartRecording(c.Context); err != nil {
				return outputError(err)
			}
			fmt.Fprintf(os.Stderr, "Recording %s. Press Ctrl-C to stop.\n", active.ID)

			waitForStop(c.Context, c.Duration("duration"))

			reviewed, err := orch.FinishRecording(context.Background())
			if err != nil {
				return outputError(err)
			}

			draft, err := orch.Draft()
			if err != nil {
				return outputError(err)
			}
			n, err := draft.Await(context.Background())
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			reviewed.SOAPNote = &n

			if !c.Bool("approve") {
				if err := orch.Cancel(context.Background()); err != nil {
					return outputError(err)
				}
				return outputJSON(recordOutput{Visit: reviewed})
			}

			saved, err := orch.Approve(context.Background(), reviewed.ID, n)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(recordOutput{Visit: saved, Approved: true})
		},
	}
}

// waitForStop blocks until SIGINT/SIGTERM, ctx ends, or d elapses when d > 0.
func waitForStop(ctx context.Context, d time.Duration) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	<-ctx.Done()
}

// resetCmd deletes the persisted session document.
func resetCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Delete persisted visits so the next start re-seeds",
		Action: func(c *cli.Context) error {
			p, closeFn, err := openPersister(c.Context, cfg)
			if err != nil {
				return outputError(err)
			}
			defer closeFn()

			if err := p.Delete(c.Context); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return outputJSON(map[string]any{"reset": true, "key": cfg.SessionKey})
		},
	}
}

// withStore opens the visit store for the duration of fn.
func withStore(c *cli.Context, cfg *config.Config, fn func(*store.Store) error) error {
	st, closeStore, err := openStore(c.Context, cfg, newLogger(cfg, os.Stderr))
	if err != nil {
		return outputError(err)
	}
	defer closeStore()
	return fn(st)
}

// Helper functions

// outputJSON writes JSON to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	sErr := errors.As(err)
	return cli.Exit(fmt.Sprintf("[%s] %s", sErr.Code, sErr.Message), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	f, ok := stdin.(*os.File)
	if !ok {
		return stdin != nil
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
