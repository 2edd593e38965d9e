// Package template expands placeholders in generated path names, such
// as the default data-directory template.
package template

import (
	"fmt"
	"os"
	"os/user"
	"strings"
	"time"
)

// Expand replaces placeholders in text.
//
// Supported placeholders:
//
//	{date}  - current date, YYYY-MM-DD
//	{unix}  - current Unix timestamp
//	{user}  - current username
//	{pid}   - current process id
//
// Entries in vars override the built-ins.
func Expand(text string, vars map[string]string) string {
	now := time.Now()

	placeholders := map[string]string{
		"date": now.Format("2006-01-02"),
		"unix": fmt.Sprintf("%d", now.Unix()),
		"pid":  fmt.Sprintf("%d", os.Getpid()),
		"user": currentUser(),
	}
	for k, v := range vars {
		placeholders[k] = v
	}

	for k, v := range placeholders {
		text = strings.ReplaceAll(text, "{"+k+"}", v)
	}
	return text
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}
