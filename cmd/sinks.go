package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/meysamhadeli/codegrep/constants/lipgloss"
	"github.com/meysamhadeli/codegrep/models"
)

// colorEnabled gates styling on a real terminal and the no_color setting.
func colorEnabled(noColor bool) bool {
	return !noColor && isatty.IsTerminal(os.Stdout.Fd())
}

// textSink renders matches grep-style: path:line:column with the matched
// span highlighted inside its line.
type textSink struct {
	out      io.Writer
	color    bool
	lastPath string
}

func (s *textSink) Consume(res *models.FileResult) error {
	for _, r := range res.Records {
		if s.color {
			if r.Path != s.lastPath {
				fmt.Fprintln(s.out, lipgloss.Magenta.Render(r.Path))
				s.lastPath = r.Path
			}
			fmt.Fprintf(s.out, "%s:%s: %s\n",
				lipgloss.Green.Render(fmt.Sprintf("%d", r.Line)),
				lipgloss.Green.Render(fmt.Sprintf("%d", r.Column)),
				highlightLine(r))
			continue
		}
		fmt.Fprintf(s.out, "%s:%d:%d: %s\n", r.Path, r.Line, r.Column, r.LineText)
	}
	return nil
}

// highlightLine colors the matched span when it sits entirely on its line.
func highlightLine(r models.MatchRecord) string {
	start := r.Column - 1
	end := start + (r.End - r.Start)
	if r.EndLine != r.Line || start < 0 || end > len(r.LineText) {
		return r.LineText
	}
	return r.LineText[:start] + lipgloss.Red.Render(r.LineText[start:end]) + r.LineText[end:]
}

// jsonRecord is the wire shape of one match in json format.
type jsonRecord struct {
	Path     string `json:"path"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
	LineText string `json:"line_text"`
	Scope    string `json:"scope,omitempty"`
	Name     string `json:"scope_name,omitempty"`
}

// jsonSink emits one JSON object per match, one per line.
type jsonSink struct {
	enc *json.Encoder
}

func newJSONSink(out io.Writer) *jsonSink {
	return &jsonSink{enc: json.NewEncoder(out)}
}

func (s *jsonSink) Consume(res *models.FileResult) error {
	for _, r := range res.Records {
		rec := jsonRecord{
			Path:     r.Path,
			Line:     r.Line,
			Column:   r.Column,
			Start:    r.Start,
			End:      r.End,
			LineText: r.LineText,
		}
		if r.Scope != nil {
			rec.Scope = r.Scope.Kind.String()
			rec.Name = r.Scope.Name
		}
		if err := s.enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

// countSink prints a per-file match count.
type countSink struct {
	out io.Writer
}

func (s *countSink) Consume(res *models.FileResult) error {
	if len(res.Records) > 0 {
		fmt.Fprintf(s.out, "%s:%d\n", res.Candidate.Path, len(res.Records))
	}
	return nil
}

// filesSink prints each matching file once.
type filesSink struct {
	out io.Writer
}

func (s *filesSink) Consume(res *models.FileResult) error {
	if len(res.Records) > 0 {
		fmt.Fprintln(s.out, res.Candidate.Path)
	}
	return nil
}
