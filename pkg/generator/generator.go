// Package generator fabricates realistic security log data so the SIEM
// dashboards have something to show in a demo environment. It pushes
// system-auth style events straight to the log sink and can additionally
// replay signed synthetic Git push webhooks against the receiver.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"sechooks/internal"
	"sechooks/webhook"

	"github.com/go-playground/webhooks/v6/github"
	"github.com/tidwall/sjson"
)

// Pusher delivers one raw log line with a label set to the sink.
type Pusher interface {
	Push(ctx context.Context, line []byte, labels map[string]string) error
}

var (
	suspiciousIPs = []string{
		"192.168.1.100", "10.0.0.5", "172.16.0.10",
		"203.0.113.10", "198.51.100.5", "192.0.2.15",
	}
	usernames        = []string{"admin", "root", "user", "test", "guest", "oracle", "postgres"}
	invalidUsernames = []string{"hacker", "exploit", "admin123", "test123", "backdoor"}
	packages         = []string{"nginx", "apache2", "mysql-server", "postgresql", "redis-server", "docker.io"}
	commands         = []string{
		"/bin/bash", "apt update", "systemctl restart nginx",
		"cat /etc/passwd", "ls -la /home", "ps aux",
	}

	repositories   = []string{"payments", "frontend", "infra", "billing-api"}
	commitMessages = []string{
		"update dependencies",
		"refactor request handling",
		"fix flaky integration test",
		"fix security vulnerability in session handling",
		"rotate api_key for staging",
		"add retry to outbound client",
	}
	changedPaths = []string{
		"internal/server.go", "README.md", "deploy/app.yaml",
		".env.staging", "Dockerfile", "pkg/client/client.go",
	}
)

// Generator runs the sample-data loops.
type Generator struct {
	cfg    internal.GeneratorConfig
	secret string
	pusher Pusher
	client *http.Client
	logger *log.Logger
}

func New(cfg internal.GeneratorConfig, secret string, pusher Pusher, logger *log.Logger) *Generator {
	if logger == nil {
		logger = log.Default()
	}
	return &Generator{
		cfg:    cfg,
		secret: secret,
		pusher: pusher,
		client: &http.Client{Timeout: time.Duration(cfg.PushTimeoutMS) * time.Millisecond},
		logger: logger,
	}
}

// Run starts one goroutine per generator and blocks until ctx is cancelled.
func (g *Generator) Run(ctx context.Context) {
	loops := []struct {
		name string
		emit func(context.Context) error
	}{
		{"ssh_invalid_user", g.emitSSHInvalidUser},
		{"sudo_usage", g.emitSudoUsage},
		{"package_change", g.emitPackageChange},
		{"successful_login", g.emitSuccessfulLogin},
	}
	if g.cfg.WebhookURL != "" {
		loops = append(loops, struct {
			name string
			emit func(context.Context) error
		}{"webhook_push", g.emitWebhookPush})
	}

	g.logger.Printf("starting %d sample-data generators", len(loops))

	var wg sync.WaitGroup
	for _, loop := range loops {
		wg.Add(1)
		go func(name string, emit func(context.Context) error) {
			defer wg.Done()
			g.loop(ctx, name, emit)
		}(loop.name, loop.emit)
	}
	wg.Wait()
}

func (g *Generator) loop(ctx context.Context, name string, emit func(context.Context) error) {
	timer := time.NewTimer(g.interval())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if err := emit(ctx); err != nil {
			g.logger.Printf("%s: %v", name, err)
		} else {
			g.logger.Printf("generated %s event", name)
		}
		timer.Reset(g.interval())
	}
}

func (g *Generator) interval() time.Duration {
	minMS, maxMS := g.cfg.MinIntervalMS, g.cfg.MaxIntervalMS
	if maxMS <= minMS {
		return time.Duration(minMS) * time.Millisecond
	}
	return time.Duration(minMS+rand.Int64N(maxMS-minMS)) * time.Millisecond
}

func (g *Generator) emitSSHInvalidUser(ctx context.Context) error {
	user := choice(invalidUsernames)
	ip := choice(suspiciousIPs)
	entry := map[string]any{
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"message":      fmt.Sprintf("Disconnected from invalid user %s %s port 22 [preauth]", user, ip),
		"invalid_user": user,
		"source_ip":    ip,
		"event_type":   "ssh_invalid_user",
		"level":        "warning",
	}
	labels := map[string]string{
		"job":          "system-auth",
		"event_type":   "ssh_invalid_user",
		"level":        "warning",
		"source_ip":    ip,
		"invalid_user": user,
	}
	return g.push(ctx, entry, labels)
}

func (g *Generator) emitSudoUsage(ctx context.Context) error {
	sudoUser := choice(usernames)
	targetUser := "root"
	if rand.IntN(10) < 3 {
		targetUser = choice(usernames)
	}
	command := choice(commands)
	tty := fmt.Sprintf("pts/%d", rand.IntN(6))
	entry := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"message": fmt.Sprintf("sudo: %s : TTY=%s ; PWD=/home/%s ; USER=%s ; COMMAND=%s",
			sudoUser, tty, sudoUser, targetUser, command),
		"sudo_user":   sudoUser,
		"target_user": targetUser,
		"command":     command,
		"tty":         tty,
		"event_type":  "sudo_usage",
		"level":       "info",
	}
	labels := map[string]string{
		"job":         "system-auth",
		"event_type":  "sudo_usage",
		"level":       "info",
		"sudo_user":   sudoUser,
		"target_user": targetUser,
	}
	return g.push(ctx, entry, labels)
}

func (g *Generator) emitPackageChange(ctx context.Context) error {
	pkg := choice(packages)
	action := choice([]string{"install", "upgrade", "remove"})
	oldVersion := randomVersion()
	newVersion := randomVersion()
	entry := map[string]any{
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"action":      action,
		"package":     pkg,
		"old_version": oldVersion,
		"new_version": newVersion,
		"event_type":  "package_change",
		"level":       "info",
	}
	labels := map[string]string{
		"job":        "package-install",
		"event_type": "package_change",
		"level":      "info",
		"package":    pkg,
		"action":     action,
	}
	return g.push(ctx, entry, labels)
}

func (g *Generator) emitSuccessfulLogin(ctx context.Context) error {
	user := choice(usernames)
	ip := choice(suspiciousIPs)
	entry := map[string]any{
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"message":    fmt.Sprintf("session opened for user %s by (uid=0)", user),
		"user":       user,
		"source_ip":  ip,
		"event_type": "successful_login",
		"level":      "info",
	}
	labels := map[string]string{
		"job":        "system-auth",
		"event_type": "successful_login",
		"level":      "info",
		"user":       user,
		"source_ip":  ip,
	}
	return g.push(ctx, entry, labels)
}

// emitWebhookPush posts a signed synthetic GitHub push event to the
// receiver so the whole ingest path gets exercised end to end.
func (g *Generator) emitWebhookPush(ctx context.Context) error {
	body, err := g.buildPushPayload()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "push")
	req.Header.Set("X-Hub-Signature-256", webhook.Sign([]byte(g.secret), body))

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}

// buildPushPayload assembles a GitHub-shaped push body: the typed payload
// struct provides the envelope, and the commit list is spliced in on top.
func (g *Generator) buildPushPayload() ([]byte, error) {
	var payload github.PushPayload
	payload.Ref = choice([]string{"refs/heads/main", "refs/heads/develop", "refs/heads/feature/login"})
	payload.Forced = rand.IntN(10) == 0

	repo := choice(repositories)
	payload.Repository.Name = repo
	payload.Repository.FullName = "acme/" + repo
	payload.Pusher.Name = choice(usernames)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	commitCount := 1 + rand.IntN(3)
	commits := make([]map[string]any, 0, commitCount)
	for i := 0; i < commitCount; i++ {
		commits = append(commits, map[string]any{
			"message":   choice(commitMessages),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"added":     []string{choice(changedPaths)},
			"modified":  []string{choice(changedPaths)},
			"removed":   []string{},
		})
	}
	return sjson.SetBytes(body, "commits", commits)
}

func (g *Generator) push(ctx context.Context, entry map[string]any, labels map[string]string) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	pushCtx, cancel := context.WithTimeout(ctx, time.Duration(g.cfg.PushTimeoutMS)*time.Millisecond)
	defer cancel()
	return g.pusher.Push(pushCtx, line, labels)
}

func choice[T any](items []T) T {
	return items[rand.IntN(len(items))]
}

func randomVersion() string {
	return fmt.Sprintf("%d.%d.%d", 1+rand.IntN(5), rand.IntN(10), rand.IntN(10))
}
