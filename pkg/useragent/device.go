// Package useragent derives the advisory client description stored with
// refresh tokens.
package useragent

import (
	"net"
	"net/http"
	"strings"

	"github.com/iamasit07/audio-translator/internal/domain"
)

const unknownDevice = "Unknown Device"

type marker struct {
	needle  string
	exclude []string
	name    string
}

// Order matters: Edge and Chrome both send "Chrome/", Chrome also sends "Safari/".
var browsers = []marker{
	{needle: "Edg/", name: "Edge"},
	{needle: "OPR/", name: "Opera"},
	{needle: "Firefox/", name: "Firefox"},
	{needle: "Chrome/", name: "Chrome"},
	{needle: "Safari/", exclude: []string{"Chrome"}, name: "Safari"},
}

// Mobile platforms first: Android UAs also say "Linux", iOS UAs also say "Mac OS X".
var systems = []marker{
	{needle: "Android", name: "Android"},
	{needle: "iPhone", name: "iOS"},
	{needle: "iPad", name: "iOS"},
	{needle: "Windows NT 10.0", name: "Windows 10/11"},
	{needle: "Windows NT 6.3", name: "Windows 8.1"},
	{needle: "Windows NT 6.1", name: "Windows 7"},
	{needle: "Windows", name: "Windows"},
	{needle: "Mac OS X", name: "macOS"},
	{needle: "Linux", name: "Linux"},
}

// ClientInfo collects device and address details for a login or refresh.
func ClientInfo(r *http.Request) domain.ClientInfo {
	return domain.ClientInfo{
		DeviceInfo: ExtractDeviceInfo(r),
		IPAddress:  ExtractIPAddress(r),
	}
}

// ExtractDeviceInfo parses the User-Agent header into "Browser Major on OS".
func ExtractDeviceInfo(r *http.Request) string {
	ua := r.Header.Get("User-Agent")
	if ua == "" {
		return unknownDevice
	}

	browser, token := match(ua, browsers, "Unknown Browser")
	os, _ := match(ua, systems, "Unknown OS")

	if version := majorVersion(ua, token); version != "" {
		return browser + " " + version + " on " + os
	}
	return browser + " on " + os
}

func match(ua string, markers []marker, fallback string) (name, needle string) {
	for _, m := range markers {
		if !strings.Contains(ua, m.needle) {
			continue
		}
		excluded := false
		for _, ex := range m.exclude {
			if strings.Contains(ua, ex) {
				excluded = true
				break
			}
		}
		if !excluded {
			return m.name, m.needle
		}
	}
	return fallback, ""
}

func majorVersion(ua, token string) string {
	if token == "" || !strings.HasSuffix(token, "/") {
		return ""
	}
	idx := strings.Index(ua, token)
	if idx == -1 {
		return ""
	}
	start := idx + len(token)
	end := start
	for end < len(ua) && ua[end] >= '0' && ua[end] <= '9' {
		end++
	}
	return ua[start:end]
}

// ExtractIPAddress gets the client IP, honouring X-Forwarded-For and X-Real-IP
// set by the reverse proxy in front of the API.
func ExtractIPAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
