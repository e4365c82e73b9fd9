package webhook

import (
	"fmt"
	"strings"

	"sechooks/internal"
)

// securityKeywords are matched case-insensitively against commit messages.
var securityKeywords = []string{
	"password", "secret", "key", "token", "credential",
	"api_key", "private", "confidential", "auth",
	"fix security", "vulnerability", "exploit", "backdoor",
}

// sensitivePatterns are matched case-insensitively against added and
// modified file paths.
var sensitivePatterns = []string{
	".env", ".key", ".pem", ".p12", ".jks", "id_rsa",
	"config.json", "secrets.yaml", "credentials",
	"docker-compose.override.yml",
}

// configPatterns identify critical build and deployment files. Matching is
// case-sensitive: Dockerfile and dockerfile are not the same signal.
var configPatterns = []string{
	"Dockerfile", "docker-compose", "helm/", "k8s/",
	".github/workflows", "Jenkinsfile", "sonar-project.properties",
}

const largeChangesetThreshold = 100

// Analyze inspects a canonical event for security risks. It is pure and
// deterministic: all matching rules accumulate findings, and the severity is
// the maximum any triggered rule demands, starting at info and never
// dropping within one pass.
func Analyze(ev internal.CanonicalEvent) ([]internal.Finding, internal.Severity) {
	var findings []internal.Finding
	severity := internal.SeverityInfo

	for _, commit := range ev.Commits {
		message := strings.ToLower(commit.Message)
		for _, keyword := range securityKeywords {
			if strings.Contains(message, keyword) {
				findings = append(findings, internal.Finding{
					Description: fmt.Sprintf("Security-sensitive keyword %q in commit message", keyword),
					Category:    internal.CategoryKeyword,
				})
				severity = severity.Raise(internal.SeverityMedium)
			}
		}

		changed := make([]string, 0, len(commit.Added)+len(commit.Modified))
		changed = append(changed, commit.Added...)
		changed = append(changed, commit.Modified...)
		for _, path := range changed {
			lower := strings.ToLower(path)
			for _, pattern := range sensitivePatterns {
				if strings.Contains(lower, pattern) {
					findings = append(findings, internal.Finding{
						Description: fmt.Sprintf("Sensitive file pattern %q in %s", pattern, path),
						Category:    internal.CategorySensitiveFile,
					})
					severity = severity.Raise(internal.SeverityHigh)
				}
			}
		}

		if len(commit.Added) > largeChangesetThreshold {
			findings = append(findings, internal.Finding{
				Description: fmt.Sprintf("Large number of files added: %d", len(commit.Added)),
				Category:    internal.CategoryLargeChangeset,
			})
			severity = severity.Raise(internal.SeverityMedium)
		}

		for _, path := range commit.Modified {
			for _, pattern := range configPatterns {
				if strings.Contains(path, pattern) {
					findings = append(findings, internal.Finding{
						Description: fmt.Sprintf("Critical configuration file modified: %s", path),
						Category:    internal.CategoryConfigChange,
					})
					severity = severity.Raise(internal.SeverityHigh)
				}
			}
		}
	}

	if ev.IsPush() && (ev.Ref == "refs/heads/main" || ev.Ref == "refs/heads/master") {
		pusher := ev.Actor
		if pusher == "" {
			pusher = "unknown"
		}
		findings = append(findings, internal.Finding{
			Description: fmt.Sprintf("Direct push to main branch by %s", pusher),
			Category:    internal.CategoryBranchProtection,
		})
		severity = severity.Raise(internal.SeverityHigh)
	}

	return findings, severity
}
