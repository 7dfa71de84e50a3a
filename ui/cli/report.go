// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/flavienbert/digitalocean/internal/scenario"
)

type reportStyles struct {
	title lipgloss.Style
	pass  lipgloss.Style
	fail  lipgloss.Style
	dim   lipgloss.Style
}

// newReportStyles returns colored styles, or styles that leave text as is
// when color is false.
func newReportStyles(color bool) reportStyles {
	if !color {
		plain := lipgloss.NewStyle()
		return reportStyles{title: plain, pass: plain, fail: plain, dim: plain}
	}
	return reportStyles{
		title: lipgloss.NewStyle().Bold(true),
		pass:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		fail:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		dim:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func renderReport(r scenario.Report, st reportStyles) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", st.title.Render("Run "+r.Prefix))
	for _, res := range r.Results {
		mark := st.pass.Render("PASS")
		if !res.OK() {
			mark = st.fail.Render("FAIL")
		}
		fmt.Fprintf(&b, "  %s  %s  %s  %s\n", mark, res.Scenario.Name,
			st.dim.Render(res.State.String()), res.Elapsed.Round(time.Millisecond))
		if res.Err != nil {
			kind := scenario.Classify(res.Err)
			var se *scenario.StepError
			if errors.As(res.Err, &se) {
				kind = se.Kind
			}
			fmt.Fprintf(&b, "        %s %v\n", st.fail.Render(string(kind)+":"), res.Err)
		}
	}
	b.WriteString(renderTeardown(r.Teardown, st))
	return b.String()
}

func renderTeardown(t scenario.TeardownReport, st reportStyles) string {
	var b strings.Builder
	failed := t.Failed()
	fmt.Fprintf(&b, "%s %d key(s) removed, %d failed\n", st.title.Render("Teardown:"),
		len(t.Cleanups)-len(failed), len(failed))
	if t.ListErr != nil {
		fmt.Fprintf(&b, "  %s %v\n", st.fail.Render("list:"), t.ListErr)
	}
	for _, c := range failed {
		fmt.Fprintf(&b, "  %s %s: %v\n", st.fail.Render("left behind"), c.Key, c.Err)
	}
	return b.String()
}
