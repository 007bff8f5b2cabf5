package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/law-makers/harvest/internal/ui"
)

// minFlagColumn is the narrowest column flag names are padded to
const minFlagColumn = 28

// customHelpFunc provides a colorized help output
func customHelpFunc(cmd *cobra.Command, args []string) {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "\n%s\n", ui.Heading(strings.ToUpper(cmd.Name())))
	if cmd.Short != "" {
		fmt.Fprintln(w, cmd.Short)
	}
	if cmd.Long != "" && cmd.Long != cmd.Short {
		fmt.Fprintf(w, "\n%s\n", wrapText(cmd.Long, 80))
	}

	writeUsage(w, cmd)

	if cmd.HasExample() {
		fmt.Fprintf(w, "\n%s\n", ui.Section("Examples"))
		writeExamples(w, cmd.Example)
	}

	writeCommands(w, cmd)

	if cmd.HasAvailableLocalFlags() {
		fmt.Fprintf(w, "\n%s\n", ui.Section("Flags"))
		writeFlags(w, cmd.LocalFlags().FlagUsages())
	}
	if cmd.HasAvailableInheritedFlags() {
		fmt.Fprintf(w, "\n%s\n", ui.Section("Global Flags"))
		writeFlags(w, cmd.InheritedFlags().FlagUsages())
	}

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "\n%sUse \"%s %s %s\" for more information about a command.%s\n",
			ui.ColorDim,
			ui.Command(cmd.CommandPath())+ui.ColorDim,
			ui.Placeholder("<command>")+ui.ColorDim,
			ui.Success("--help")+ui.ColorDim,
			ui.ColorReset)
	}
	fmt.Fprintln(w)
}

// customUsageFunc provides a colorized usage output
func customUsageFunc(cmd *cobra.Command) error {
	w := cmd.ErrOrStderr()

	writeUsage(w, cmd)
	writeCommands(w, cmd)
	if cmd.HasAvailableLocalFlags() {
		fmt.Fprintf(w, "\n%s\n", ui.Section("Flags"))
		writeFlags(w, cmd.LocalFlags().FlagUsages())
	}

	fmt.Fprintf(w, "\n%sUse \"%s %s\" for more information.%s\n",
		ui.ColorDim,
		ui.Command(cmd.CommandPath())+ui.ColorDim,
		ui.Success("--help")+ui.ColorDim,
		ui.ColorReset)
	return nil
}

func writeUsage(w io.Writer, cmd *cobra.Command) {
	fmt.Fprintf(w, "\n%s\n", ui.Section("Usage"))
	if cmd.Runnable() {
		fmt.Fprintf(w, "  %s\n", ui.Command(cmd.UseLine()))
	}
	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "  %s %s %s\n",
			ui.Command(cmd.CommandPath()),
			ui.Placeholder("<command>"),
			ui.Dim("[flags]"))
	}
}

// writeExamples renders "# comment" lines dimmed and everything else as a
// shell prompt, with a blank line before each comment that follows a command
func writeExamples(w io.Writer, example string) {
	lastWasCommand := false
	for _, line := range strings.Split(example, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case strings.HasPrefix(trimmed, "#"):
			if lastWasCommand {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "  %s\n", ui.Dim(trimmed))
			lastWasCommand = false
		default:
			trimmed = strings.TrimPrefix(trimmed, "$ ")
			fmt.Fprintf(w, "  %s\n", ui.Success("$ "+trimmed))
			lastWasCommand = true
		}
	}
}

func writeCommands(w io.Writer, cmd *cobra.Command) {
	if !cmd.HasAvailableSubCommands() {
		return
	}
	var cmds []*cobra.Command
	width := 0
	for _, c := range cmd.Commands() {
		if c.IsAvailableCommand() && c.Name() != "help" {
			cmds = append(cmds, c)
			width = max(width, len(c.Name()))
		}
	}

	fmt.Fprintf(w, "\n%s\n", ui.Section("Commands"))
	for _, c := range cmds {
		fmt.Fprintf(w, "  %s%s%s\n",
			ui.Command(c.Name()),
			strings.Repeat(" ", width-len(c.Name())+2),
			ui.Dim(c.Short))
	}
}

// writeFlags re-renders pflag's usage block with the flag column coloured
// and descriptions aligned
func writeFlags(w io.Writer, usages string) {
	lines := strings.Split(usages, "\n")

	width := minFlagColumn
	for _, line := range lines {
		if name, _, ok := splitFlagLine(line); ok {
			width = max(width, len(name))
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		name, desc, ok := splitFlagLine(line)
		switch {
		case ok && desc != "":
			fmt.Fprintf(w, "  %s%s%s\n",
				ui.Success(name),
				strings.Repeat(" ", width-len(name)+2),
				ui.Dim(desc))
		case ok:
			fmt.Fprintf(w, "  %s\n", ui.Success(name))
		default:
			// continuation of the previous description
			fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", width+4), ui.Dim(trimmed))
		}
	}
}

// splitFlagLine splits "  -c, --concurrency int   Number of ..." into the
// flag column and the description. ok is false for continuation lines.
func splitFlagLine(line string) (name, desc string, ok bool) {
	trimmed := strings.TrimLeft(line, " ")
	if !strings.HasPrefix(trimmed, "-") {
		return "", "", false
	}
	name, desc, _ = strings.Cut(trimmed, "  ")
	return strings.TrimSpace(name), strings.TrimSpace(desc), true
}

// wrapText wraps text at width, keeping paragraphs and list items intact
func wrapText(text string, width int) string {
	var paragraphs []string
	for _, para := range strings.Split(text, "\n\n") {
		var out []string
		for _, line := range strings.Split(para, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") {
				out = append(out, line)
				continue
			}
			out = append(out, wrapLine(line, width)...)
		}
		if len(out) > 0 {
			paragraphs = append(paragraphs, strings.Join(out, "\n"))
		}
	}
	return strings.Join(paragraphs, "\n\n")
}

func wrapLine(line string, width int) []string {
	var lines []string
	var cur strings.Builder
	for _, word := range strings.Fields(line) {
		if cur.Len() > 0 && cur.Len()+1+len(word) > width {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}
