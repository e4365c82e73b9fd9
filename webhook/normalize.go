package webhook

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sort"

	"sechooks/internal"

	"github.com/tidwall/gjson"
)

// githubEventKinds are event names that identify GitHub as the sender even
// when the payload carries no repository URL.
var githubEventKinds = map[string]bool{
	"push":         true,
	"pull_request": true,
	"issues":       true,
	"create":       true,
	"delete":       true,
	"release":      true,
	"workflow_run": true,
}

// Normalize maps a raw webhook payload plus transport headers into a
// canonical event. Every nested lookup tolerates missing keys and falls back
// to the field's documented default; normalization itself never fails.
func Normalize(header http.Header, rawBody []byte) internal.CanonicalEvent {
	ev := internal.CanonicalEvent{
		Provider:  internal.ProviderUnknown,
		EventKind: "unknown",
	}

	if !json.Valid(rawBody) {
		return ev
	}
	payload := gjson.ParseBytes(rawBody)
	if !payload.IsObject() {
		return ev
	}

	ev.EventKind = resolveEventKind(header, payload)
	ev.Provider = resolveProvider(rawBody, ev.EventKind)
	if ev.Provider == internal.ProviderUnknown {
		ev.RawKeys = topLevelKeys(payload)
	}

	ev.Repository = resolveRepository(ev.Provider, payload)
	ev.Actor = resolveActor(ev.Provider, payload)
	ev.Ref = payload.Get("ref").String()
	ev.Forced = payload.Get("forced").Bool()
	ev.Commits = extractCommits(payload)

	return ev
}

// resolveEventKind picks the first non-empty source: GitHub event header,
// GitLab event header, the payload's object_kind, then "unknown".
func resolveEventKind(header http.Header, payload gjson.Result) string {
	if kind := header.Get("X-GitHub-Event"); kind != "" {
		return kind
	}
	if kind := header.Get("X-Gitlab-Event"); kind != "" {
		return kind
	}
	if kind := payload.Get("object_kind").String(); kind != "" {
		return kind
	}
	return "unknown"
}

func resolveProvider(rawBody []byte, eventKind string) internal.Provider {
	if bytes.Contains(rawBody, []byte("github.com")) || githubEventKinds[eventKind] {
		return internal.ProviderGitHub
	}
	if bytes.Contains(rawBody, []byte("gitlab")) {
		return internal.ProviderGitLab
	}
	return internal.ProviderUnknown
}

func resolveRepository(provider internal.Provider, payload gjson.Result) string {
	switch provider {
	case internal.ProviderGitLab:
		if name := payload.Get("project.path_with_namespace").String(); name != "" {
			return name
		}
	default:
		if name := payload.Get("repository.full_name").String(); name != "" {
			return name
		}
	}
	return payload.Get("repository.name").String()
}

func resolveActor(provider internal.Provider, payload gjson.Result) string {
	candidates := []string{"pusher.name", "sender.login"}
	if provider == internal.ProviderGitLab {
		candidates = []string{"user_username", "user_name", "user.username"}
	}
	for _, path := range candidates {
		if actor := payload.Get(path).String(); actor != "" {
			return actor
		}
	}
	return ""
}

func extractCommits(payload gjson.Result) []internal.Commit {
	raw := payload.Get("commits")
	if !raw.IsArray() {
		return nil
	}
	list := raw.Array()
	commits := make([]internal.Commit, 0, len(list))
	for _, entry := range list {
		commits = append(commits, internal.Commit{
			Message:   entry.Get("message").String(),
			Timestamp: entry.Get("timestamp").String(),
			Added:     stringList(entry.Get("added")),
			Modified:  stringList(entry.Get("modified")),
			Removed:   stringList(entry.Get("removed")),
		})
	}
	return commits
}

func stringList(raw gjson.Result) []string {
	if !raw.IsArray() {
		return nil
	}
	values := raw.Array()
	out := make([]string, 0, len(values))
	for _, value := range values {
		out = append(out, value.String())
	}
	return out
}

func topLevelKeys(payload gjson.Result) []string {
	var keys []string
	payload.ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	sort.Strings(keys)
	return keys
}
