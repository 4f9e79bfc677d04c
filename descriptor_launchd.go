package lifecycle

import (
	"fmt"
	"strings"
)

// RenderAgentPlist serializes the per-user launchd agent. The argument list
// is embedded as a literal ordered array; the order is guaranteed by the
// typed ArgList, and updates re-serialize the whole array rather than
// patching entries by numeric index.
func (d *Descriptor) RenderAgentPlist() string {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	b.WriteString("<!DOCTYPE plist PUBLIC \"-//Apple//DTD PLIST 1.0//EN\" \"http://www.apple.com/DTDs/PropertyList-1.0.dtd\">\n")
	b.WriteString("<plist version=\"1.0\">\n")
	b.WriteString("<dict>\n")

	fmt.Fprintf(&b, "\t<key>Label</key>\n\t<string>%s</string>\n", plistEscape(d.Label))

	b.WriteString("\t<key>ProgramArguments</key>\n")
	b.WriteString("\t<array>\n")
	for _, token := range d.Args.Strings() {
		fmt.Fprintf(&b, "\t\t<string>%s</string>\n", plistEscape(token))
	}
	b.WriteString("\t</array>\n")

	fmt.Fprintf(&b, "\t<key>WorkingDirectory</key>\n\t<string>%s</string>\n", plistEscape(d.WorkingDir))
	fmt.Fprintf(&b, "\t<key>StandardOutPath</key>\n\t<string>%s</string>\n", plistEscape(d.StdoutPath))
	fmt.Fprintf(&b, "\t<key>StandardErrorPath</key>\n\t<string>%s</string>\n", plistEscape(d.StderrPath))

	fmt.Fprintf(&b, "\t<key>RunAtLoad</key>\n\t%s\n", plistBool(d.AutoStart))

	if d.RestartOnFailure {
		b.WriteString("\t<key>KeepAlive</key>\n")
		b.WriteString("\t<dict>\n")
		b.WriteString("\t\t<key>SuccessfulExit</key>\n")
		b.WriteString("\t\t<false/>\n")
		b.WriteString("\t</dict>\n")
	}

	b.WriteString("</dict>\n")
	b.WriteString("</plist>\n")
	return b.String()
}

func plistBool(v bool) string {
	if v {
		return "<true/>"
	}
	return "<false/>"
}

// plistEscape escapes the characters XML treats specially in text content.
func plistEscape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	return r.Replace(s)
}
