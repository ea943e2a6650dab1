package device

import (
	"regexp"
	"strings"
)

// ClientInfo describes the software on the other end of a connection
type ClientInfo struct {
	Name    string // Friendly name like "Android app" or "Chrome on Windows"
	Kind    string // "browser", "app", "library", "unknown"
	OS      string // "Android", "iOS", "Windows", "macOS", "Linux", ""
	Library string // websocket library or runtime when known
}

var (
	androidVersion = regexp.MustCompile(`android ([\d.]+)`)
	libraryToken   = regexp.MustCompile(`^(okhttp|python-websockets|go-http-client|node-fetch|websocket-sharp|dart:io|java-websocket)[/ ]?([\w.\-]*)`)
)

// ParseUserAgent extracts client information from a User-Agent string.
// Remote controls rarely send one; an empty header yields "Unknown client".
func ParseUserAgent(ua string) ClientInfo {
	info := ClientInfo{
		Name: "Unknown client",
		Kind: "unknown",
	}

	ua = strings.ToLower(strings.TrimSpace(ua))
	if ua == "" {
		return info
	}

	if m := libraryToken.FindStringSubmatch(ua); m != nil {
		info.Library = m[1]
		info.Kind = "library"
		info.Name = libraryName(m[1])
		if m[1] == "okhttp" || m[1] == "dart:io" {
			info.Kind = "app"
			info.OS = "Android"
			info.Name = "Android app"
		}
		return info
	}

	switch {
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad"):
		info.OS = "iOS"
	case strings.Contains(ua, "android"):
		info.OS = "Android"
		if m := androidVersion.FindStringSubmatch(ua); len(m) > 1 {
			info.OS = "Android " + m[1]
		}
	case strings.Contains(ua, "macintosh") || strings.Contains(ua, "mac os"):
		info.OS = "macOS"
	case strings.Contains(ua, "windows"):
		info.OS = "Windows"
	case strings.Contains(ua, "cros"):
		info.OS = "ChromeOS"
	case strings.Contains(ua, "linux"):
		info.OS = "Linux"
	}

	browser := ""
	switch {
	case strings.Contains(ua, "electron"):
		info.Kind = "app"
		info.Name = "Electron app"
	case strings.Contains(ua, "firefox"):
		browser = "Firefox"
	case strings.Contains(ua, "edg"):
		browser = "Edge"
	case strings.Contains(ua, "opr") || strings.Contains(ua, "opera"):
		browser = "Opera"
	case strings.Contains(ua, "chrome") || strings.Contains(ua, "chromium"):
		browser = "Chrome"
	case strings.Contains(ua, "safari"):
		browser = "Safari"
	}

	if browser != "" {
		info.Kind = "browser"
		info.Name = browser
		if info.OS != "" {
			info.Name = browser + " on " + info.OS
		}
	} else if info.Kind == "unknown" && info.OS != "" {
		info.Name = info.OS + " client"
	}
	if info.Kind == "app" && info.OS != "" {
		info.Name += " on " + info.OS
	}

	return info
}

func libraryName(token string) string {
	switch token {
	case "python-websockets":
		return "Python client"
	case "go-http-client":
		return "Go client"
	case "node-fetch":
		return "Node.js client"
	case "websocket-sharp":
		return ".NET client"
	case "java-websocket":
		return "Java client"
	default:
		return token
	}
}

// GetFriendlyName returns a short, friendly client name
func GetFriendlyName(ua string) string {
	return ParseUserAgent(ua).Name
}
