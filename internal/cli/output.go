package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// Output печатает результаты команд: таблицы для людей,
// JSON для скриптов (--json). Данные идут в stdout,
// служебные сообщения — в stderr.
type Output struct {
	jsonMode bool
	w        io.Writer
	errW     io.Writer
}

// NewOutput создаёт Output.
func NewOutput(jsonMode bool) *Output {
	return &Output{jsonMode: jsonMode, w: os.Stdout, errW: os.Stderr}
}

// Print выводит данные в формате, выбранном пользователем.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
	} else {
		o.Table(headers, rows)
	}
}

// Table печатает таблицу с заголовком и строкой-разделителем.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	writeRow(tw, headers)

	divider := make([]string, len(headers))
	for i, h := range headers {
		divider[i] = strings.Repeat("-", len(h))
	}
	writeRow(tw, divider)

	for _, row := range rows {
		writeRow(tw, row)
	}
}

// JSON печатает значение с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(o.errW, "Error: encode output: %v\n", err)
	}
}

// Success печатает сообщение об успехе в stderr,
// чтобы не засорять перенаправляемый stdout.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Successf — Success с форматированием.
func (o *Output) Successf(format string, args ...any) {
	fmt.Fprintf(o.errW, format+"\n", args...)
}

// Error печатает сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintf(o.errW, "Error: %s\n", msg)
}

func writeRow(w io.Writer, cells []string) {
	fmt.Fprintln(w, strings.Join(cells, "\t"))
}
