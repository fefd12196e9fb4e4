package action

import (
	"net/url"
	"strings"
)

// NormalizeLink unwraps search-engine redirect links and rewrites Zoom join
// links into the zoommtg:// scheme so the desktop client opens directly.
// Anything else is returned unchanged.
func NormalizeLink(raw string) string {
	link := UnwrapRedirect(strings.TrimSpace(raw))
	if meetingID, password, ok := ExtractZoomInfo(link); ok {
		return BuildZoomJoinURL(meetingID, password)
	}
	return link
}

// UnwrapRedirect returns the q parameter of a www.google.com redirect link
func UnwrapRedirect(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Host != "www.google.com" {
		return link
	}
	if q := u.Query().Get("q"); q != "" {
		return q
	}
	return link
}

// ExtractZoomInfo pulls the meeting number and password out of a
// https://<sub>.zoom.us/j/<id>?pwd=<pwd> link
func ExtractZoomInfo(link string) (meetingID, password string, ok bool) {
	u, err := url.Parse(link)
	if err != nil {
		return "", "", false
	}
	host := strings.ToLower(u.Hostname())
	if host != "zoom.us" && !strings.HasSuffix(host, ".zoom.us") {
		return "", "", false
	}
	meetingID, found := strings.CutPrefix(u.Path, "/j/")
	if !found {
		return "", "", false
	}
	meetingID = strings.Trim(meetingID, "/")
	if meetingID == "" {
		return "", "", false
	}
	return meetingID, u.Query().Get("pwd"), true
}

// BuildZoomJoinURL builds the zoommtg:// link the Zoom client handles
func BuildZoomJoinURL(meetingID, password string) string {
	params := url.Values{}
	params.Set("action", "join")
	params.Set("confno", meetingID)
	params.Set("pwd", password)
	return "zoommtg://zoom.us/join?" + params.Encode()
}
