package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/wyllianbs/QuizRandomShuffle/internal/handler"
	appI18n "github.com/wyllianbs/QuizRandomShuffle/internal/i18n"
	"github.com/wyllianbs/QuizRandomShuffle/internal/model"
	"github.com/wyllianbs/QuizRandomShuffle/internal/parser"
	"github.com/wyllianbs/QuizRandomShuffle/internal/shuffle"
	"github.com/wyllianbs/QuizRandomShuffle/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "quizshuffle",
		Short: "Generate shuffled versions of LaTeX exam files",
	}

	generate := generateCmd()
	root.AddCommand(generate, serveCmd(), historyCmd(), exportCmd())

	// Make "generate" the default when no subcommand is given.
	root.RunE = generate.RunE

	// Register generate flags on root so bare `quizshuffle -f P1A.tex` still works.
	root.Flags().AddFlagSet(generate.Flags())

	return root
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate shuffled exam versions from a base file",
		RunE:  runGenerate,
	}
	f := cmd.Flags()
	f.StringP("file", "f", "P1A.tex", "Base exam file")
	f.IntP("versions", "n", 2, "Number of versions to generate")
	f.StringP("suffix", "s", "", "Suffix letter of the first version (default: next after the base file's)")
	f.Bool("shuffle-questions", true, "Shuffle question order")
	f.Bool("shuffle-answers", true, "Shuffle multiple-choice alternatives")
	f.IntP("max-consecutive", "m", 3, "Longest allowed run of identical answer-key letters")
	f.Int64("seed", 0, "Random seed (0 = time-based)")
	f.String("db", "quizshuffle.db", "Run history database path (empty to disable history)")
	f.StringP("lang", "l", "en", "Message language (en, pt)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP shuffle API",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "quizshuffle.db", "Run history database path")
	f.StringP("lang", "l", "en", "Message language (en, pt)")
	f.String("api-password", "", "Bearer token protecting the API (or set QUIZSHUFFLE_API_PASSWORD)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded generation runs",
		RunE:  runHistory,
	}
	f := cmd.Flags()
	f.String("db", "quizshuffle.db", "Run history database path")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the run history with answer keys as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "quizshuffle.db", "Run history database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("QUIZSHUFFLE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("quizshuffle")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/quizshuffle")
	v.AddConfigPath("/etc/quizshuffle")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	ctx := appI18n.WithLocalizer(context.Background(), appI18n.NewLocalizer(lang))

	path := v.GetString("file")
	fmt.Println(appI18n.Td(ctx, "LoadingFile", map[string]any{"Path": path}))
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read base file: %w", err)
	}

	doc, warnings := parser.Parse(string(data))
	for _, warn := range warnings {
		slog.Warn("malformed question block", "line", warn.Line, "id", warn.ID, "reason", warn.Reason)
		fmt.Println(appI18n.Td(ctx, "MalformedBlock", map[string]any{"Line": warn.Line, "ID": warn.ID}))
	}
	mc, tf := doc.CountKinds()
	fmt.Println(appI18n.Td(ctx, "QuestionsFound",
		map[string]any{"Count": len(doc.Questions), "MC": mc, "TF": tf}))

	stem, ext := splitName(path)
	suffix := suffixStart(v.GetString("suffix"), stem)
	cfg := model.RunConfig{
		NumVersions:      v.GetInt("versions"),
		SuffixStart:      suffix,
		ShuffleQuestions: v.GetBool("shuffle-questions"),
		ShuffleAnswers:   v.GetBool("shuffle-answers"),
		MaxConsecutive:   v.GetInt("max-consecutive"),
		MaxAttempts:      model.DefaultMaxAttempts,
		Seed:             v.GetInt64("seed"),
	}

	versions, err := shuffle.GenerateVersions(doc, cfg, nil)
	if err != nil {
		return fmt.Errorf("generate versions: %w", err)
	}

	prefix := stem
	if len(stem) > 0 {
		prefix = stem[:len(stem)-1] // "P1A" -> "P1"
	}
	dir := filepath.Dir(path)

	var records []model.VersionRecord
	for i, ver := range versions {
		name := prefix + ver.Suffix + ext
		outPath := filepath.Join(dir, name)
		fmt.Println(appI18n.Td(ctx, "GeneratingVersion",
			map[string]any{"Index": i + 1, "Total": len(versions), "Name": name}))
		if err := os.WriteFile(outPath, []byte(ver.DocumentText), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}
		fmt.Println(appI18n.Td(ctx, "WroteFile", map[string]any{"Path": outPath}))
		fmt.Println(appI18n.Td(ctx, "AnswerKeyLine",
			map[string]any{"Suffix": ver.Suffix, "Key": ver.Key()}))
		if !ver.ConstraintSatisfied {
			fmt.Println(appI18n.Td(ctx, "ConstraintUnsatisfied",
				map[string]any{"Attempts": ver.AttemptsUsed}))
		}
		records = append(records, model.VersionRecord{
			Suffix:              ver.Suffix,
			OutputPath:          outPath,
			Attempts:            ver.AttemptsUsed,
			ConstraintSatisfied: ver.ConstraintSatisfied,
			AnswerKey:           ver.Key(),
		})
	}

	if dbPath := v.GetString("db"); dbPath != "" {
		db, err := store.New(dbPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		runID, err := db.RecordRun(model.Run{
			Source:           path,
			NumVersions:      cfg.NumVersions,
			ShuffleQuestions: cfg.ShuffleQuestions,
			ShuffleAnswers:   cfg.ShuffleAnswers,
			MaxConsecutive:   cfg.MaxConsecutive,
			Seed:             cfg.Seed,
			QuestionCount:    len(doc.Questions),
			MCCount:          mc,
			TFCount:          tf,
		}, records)
		if err != nil {
			return fmt.Errorf("record run: %w", err)
		}
		slog.Info("run recorded", "id", runID, "db", dbPath)
	}

	fmt.Println(appI18n.Tp(ctx, "VersionsGenerated", len(versions)))
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	h := handler.New(db)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))

	r.Get("/healthz", handler.Health)
	r.Group(func(gr chi.Router) {
		if pw := v.GetString("api-password"); pw != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
			if err != nil {
				slog.Error("hash api password", "error", err)
			} else {
				gr.Use(handler.RequireToken(hash))
			}
		}
		h.Routes(gr)
	})

	addr := v.GetString("addr")
	slog.Info("starting server", "addr", addr, "lang", lang, "db", v.GetString("db"))
	return http.ListenAndServe(addr, r)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	runs, err := db.ListRuns()
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	for _, r := range runs {
		fmt.Printf("#%d  %s  %s  versions=%d questions=%d (mc=%d tf=%d) max-consecutive=%d\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Source,
			r.NumVersions, r.QuestionCount, r.MCCount, r.TFCount, r.MaxConsecutive)
		versions, err := db.VersionsForRun(r.ID)
		if err != nil {
			return fmt.Errorf("versions for run %d: %w", r.ID, err)
		}
		for _, ver := range versions {
			status := "ok"
			if !ver.ConstraintSatisfied {
				status = "constraint not satisfied"
			}
			fmt.Printf("    %s  key=%s  attempts=%d  %s\n",
				ver.Suffix, ver.AnswerKey, ver.Attempts, status)
		}
	}
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportHistory()
	if err != nil {
		return fmt.Errorf("export history: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}

// splitName returns the file name without its extension, and the extension.
func splitName(path string) (stem, ext string) {
	base := filepath.Base(path)
	ext = filepath.Ext(base)
	return strings.TrimSuffix(base, ext), ext
}

// suffixStart resolves the first suffix letter: an explicit flag value wins,
// otherwise the letter after the base file's own suffix ("P1A" -> 'B').
func suffixStart(flag, stem string) rune {
	if flag != "" {
		return unicode.ToUpper(rune(flag[0]))
	}
	if stem == "" {
		return 'A'
	}
	runes := []rune(stem)
	return unicode.ToUpper(runes[len(runes)-1]) + 1
}
