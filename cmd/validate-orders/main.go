package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/Gunvolt24/resto_sync/pkg/validate"
)

// CLI-приложение для проверки файлов заказов перед импортом.
func main() {
	os.Exit(run())
}

// run — 0: всё валидно, 1: ошибка ввода, 2: есть отбракованные записи.
func run() int {
	inputPath := flag.String("in", "", "path to input (.json object or array, .jsonl or .ndjson). If empty, reads JSONL from stdin.")
	formatStr := flag.String("format", "auto", "input format: auto|json|jsonl")
	quiet := flag.Bool("q", false, "do not report rejected records")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	orderValidator := validate.NewOrderValidator()
	format := validate.InputFormat(*formatStr)

	onInvalid := func(line int, err error) {
		if !*quiet {
			fmt.Fprintf(os.Stderr, "line %d: %v\n", line, err)
		}
	}

	var (
		summary validate.Summary
		err     error
	)
	if *inputPath == "" {
		summary, err = validate.ValidateReader(ctx, orderValidator, os.Stdin, format, os.Stdout, onInvalid)
	} else {
		summary, err = validate.ValidateFile(ctx, orderValidator, *inputPath, format, os.Stdout, onInvalid)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "validation: %v (%s)\n", err, summary)
		return 1
	}
	fmt.Fprintf(os.Stderr, "validation ok (%s)\n", summary)
	if summary.Invalid > 0 {
		return 2
	}
	return 0
}
