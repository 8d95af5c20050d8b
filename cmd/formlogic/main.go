package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/timzifer/formlogic/config"
	"github.com/timzifer/formlogic/engine"
	"github.com/timzifer/formlogic/internal/logging"
	"github.com/timzifer/formlogic/telemetry"
)

func main() {
	formPath := flag.String("form", "form.yaml", "Path to form definition file")
	answersPath := flag.String("answers", "", "Path to answers file (YAML map of question id to value)")
	check := flag.Bool("check", false, "Validate the form's rule set and exit")
	logLevel := flag.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	logFormat := flag.String("log-format", "text", "Log format (text or json)")
	flag.Parse()

	logger, cleanup, err := logging.Setup(logging.Config{Level: *logLevel, Format: *logFormat})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup logger")
	}
	defer cleanup()
	log.Logger = logger

	form, err := config.Load(*formPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load form")
	}

	collector, err := telemetry.NewPrometheusCollector(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry disabled: %v\n", err)
	}

	if *check {
		os.Exit(executeRuleCheck(form, collector))
	}

	answers := map[string]interface{}{}
	if *answersPath != "" {
		answers, err = config.LoadAnswers(*answersPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load answers")
		}
	}

	eng, err := engine.New(form, logger, engine.WithCollector(collectorOrNoop(collector)))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build engine")
	}
	printEvaluation(form, eng.Evaluate(answers), answers)
}

func collectorOrNoop(collector *telemetry.PrometheusCollector) telemetry.Collector {
	if collector == nil {
		return telemetry.Noop()
	}
	return collector
}

func executeRuleCheck(form *config.Form, collector *telemetry.PrometheusCollector) int {
	reports, err := engine.AnalyzeRules(form)
	if err != nil {
		fmt.Fprintf(os.Stderr, "form invalid: %v\n", err)
		return 1
	}

	if len(reports) == 0 {
		fmt.Println("No logic rules configured.")
		return 0
	}

	exitCode := 0
	for _, report := range reports {
		fmt.Printf("Rule %q on question %s\n", report.Rule, report.Question)
		fmt.Printf("  Kind: %s\n", report.Kind)
		fmt.Printf("  Action: %s\n", report.Action)
		if !report.Enabled {
			fmt.Println("  Enabled: no")
		}
		printIDList("Sources", report.Sources)
		printIDList("Targets", report.Targets)
		if report.Formula != "" {
			fmt.Printf("  Formula: %s\n", report.Formula)
		}
		if len(report.Errors) > 0 {
			exitCode = 1
			fmt.Println("  Errors:")
			for _, msg := range report.Errors {
				fmt.Printf("    - %s\n", msg)
			}
		} else {
			fmt.Println("  Status: OK")
		}
		fmt.Println()
	}

	if cyclic := engine.FindCircularQuestionIDs(form.Questions); len(cyclic) > 0 {
		exitCode = 1
		collectorOrNoop(collector).IncCycleDetected(form.Name)
		fmt.Printf("Dependency cycle involving: %s\n\n", strings.Join(cyclic, ", "))
	}

	if exitCode == 0 {
		fmt.Println("Rule check completed successfully.")
	} else {
		fmt.Println("Rule check completed with errors.")
	}
	return exitCode
}

func printIDList(label string, ids []string) {
	fmt.Printf("  %s:\n", label)
	if len(ids) == 0 {
		fmt.Println("    <none>")
		return
	}
	for _, id := range ids {
		fmt.Printf("    - %s\n", id)
	}
}

func printEvaluation(form *config.Form, result *engine.Result, answers map[string]interface{}) {
	for _, q := range form.Sorted() {
		state := "visible"
		if !result.Visible(q.ID) {
			state = "hidden"
		}
		fmt.Printf("%s [%s]", q.ID, state)
		if result.Required(q.ID, q.Required) {
			fmt.Print(" (required)")
		}
		if value := result.QuestionValue(q.ID, answers); value != nil {
			fmt.Printf(" = %v", value)
		}
		fmt.Println()
	}
	if len(result.Stalled) > 0 {
		fmt.Printf("Stalled rules: %s\n", strings.Join(result.Stalled, ", "))
	}
}
