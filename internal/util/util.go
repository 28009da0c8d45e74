// Package util holds small string helpers shared by the storage backends.
package util

import (
	"fmt"
	"strings"
	"time"
)

// FileTimestampLayout is used in every generated file name.
const FileTimestampLayout = "20060102_150405"

var fileNameReplacer = strings.NewReplacer(
	" ", "_",
	":", "_",
	"/", "_",
	`\`, "_",
	`"`, "",
)

// SafeFileName turns a run or scenario name into something usable as a
// file name component. An empty result becomes "run".
func SafeFileName(name string) string {
	s := fileNameReplacer.Replace(strings.TrimSpace(name))
	if s == "" {
		return "run"
	}
	return s
}

// TimestampedName builds "<name>_<timestamp><ext>".
func TimestampedName(name string, t time.Time, ext string) string {
	return fmt.Sprintf("%s_%s%s", SafeFileName(name), t.Format(FileTimestampLayout), ext)
}

// DetectionText renders a one-line description of a detection transition.
func DetectionText(scoutID, targetID, action string, distanceM int) string {
	var b strings.Builder
	b.WriteString(scoutID)
	b.WriteByte(' ')
	b.WriteString(action)
	b.WriteByte(' ')
	b.WriteString(targetID)
	if distanceM >= 0 {
		fmt.Fprintf(&b, " [%d m]", distanceM)
	}
	return b.String()
}
