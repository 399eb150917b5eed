package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"opsflow/internal/capability"
	"opsflow/internal/config"
	"opsflow/pkg/logging"
)

// IntegrationID is the registry key of the GitHub integration.
const IntegrationID = "github"

// Integration exposes repository operations as workflow actions.
type Integration struct {
	client *client
	owner  string
}

// Option configures the integration.
type Option func(*Integration)

// WithHTTPClient replaces the HTTP client used for API calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(i *Integration) {
		i.client.httpClient = httpClient
	}
}

// New creates the integration. It is configured only when a token is set.
func New(cfg config.GitHubConfig, opts ...Option) *Integration {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultGitHubBaseURL
	}
	i := &Integration{
		client: newClient(baseURL, cfg.GitHubToken(), nil),
		owner:  cfg.Owner,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Integration) ID() string { return IntegrationID }

func (i *Integration) IsConfigured() bool { return i.client.token != "" }

// HealthCheck queries the rate limit endpoint, which every token may read.
func (i *Integration) HealthCheck(ctx context.Context) capability.HealthStatus {
	start := time.Now()
	result, err := i.client.do(ctx, http.MethodGet, "/rate_limit", nil)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return capability.HealthStatus{Healthy: false, Message: err.Error(), LatencyMs: latency}
	}
	return capability.HealthStatus{
		Healthy: true,
		Message: fmt.Sprintf("%d/%d API requests remaining",
			result.Get("resources.core.remaining").Int(), result.Get("resources.core.limit").Int()),
		LatencyMs: latency,
	}
}

func (i *Integration) Actions() map[string]capability.ActionHandler {
	return map[string]capability.ActionHandler{
		"create_issue":     i.createIssue,
		"comment_issue":    i.commentIssue,
		"get_pull_request": i.getPullRequest,
		"create_branch":    i.createBranch,
	}
}

// repoPath resolves "owner/repo" from the repo parameter, which may be
// either "name" (owner taken from the owner parameter or configuration) or
// "owner/name".
func (i *Integration) repoPath(p capability.Params) (string, error) {
	repo, err := p.RequiredString("repo")
	if err != nil {
		return "", err
	}
	if strings.Contains(repo, "/") {
		parts := strings.SplitN(repo, "/", 2)
		return "/repos/" + url.PathEscape(parts[0]) + "/" + url.PathEscape(parts[1]), nil
	}
	owner := p.StringOr("owner", i.owner)
	if owner == "" {
		return "", errors.New("missing required parameter: owner")
	}
	return "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(repo), nil
}

func requiredNumber(p capability.Params) (int64, error) {
	number, ok := p.Int64("number")
	if !ok || number <= 0 {
		return 0, errors.New("parameter number must be a positive integer")
	}
	return number, nil
}

func (i *Integration) createIssue(ctx context.Context, p capability.Params) (capability.IntegrationResult, error) {
	repoPath, err := i.repoPath(p)
	if err != nil {
		return capability.IntegrationResult{}, err
	}
	title, err := p.RequiredString("title")
	if err != nil {
		return capability.IntegrationResult{}, err
	}

	body := map[string]interface{}{"title": title}
	if text, ok := p.String("body"); ok {
		body["body"] = text
	}
	if labels, ok := p.StringSlice("labels"); ok && len(labels) > 0 {
		body["labels"] = labels
	}
	if assignees, ok := p.StringSlice("assignees"); ok && len(assignees) > 0 {
		body["assignees"] = assignees
	}

	result, err := i.client.do(ctx, http.MethodPost, repoPath+"/issues", body)
	if err != nil {
		return capability.IntegrationResult{}, err
	}

	number := result.Get("number").Int()
	logging.Info("GitHub", "Created issue #%d in %s", number, repoPath)
	return capability.Success(fmt.Sprintf("Created issue #%d", number), map[string]interface{}{
		"number": number,
		"url":    result.Get("html_url").String(),
		"state":  result.Get("state").String(),
	}), nil
}

func (i *Integration) commentIssue(ctx context.Context, p capability.Params) (capability.IntegrationResult, error) {
	repoPath, err := i.repoPath(p)
	if err != nil {
		return capability.IntegrationResult{}, err
	}
	number, err := requiredNumber(p)
	if err != nil {
		return capability.IntegrationResult{}, err
	}
	text, err := p.RequiredString("body")
	if err != nil {
		return capability.IntegrationResult{}, err
	}

	result, err := i.client.do(ctx, http.MethodPost,
		fmt.Sprintf("%s/issues/%d/comments", repoPath, number),
		map[string]interface{}{"body": text})
	if err != nil {
		return capability.IntegrationResult{}, err
	}

	return capability.Success(fmt.Sprintf("Commented on #%d", number), map[string]interface{}{
		"id":     result.Get("id").Int(),
		"url":    result.Get("html_url").String(),
		"number": number,
	}), nil
}

func (i *Integration) getPullRequest(ctx context.Context, p capability.Params) (capability.IntegrationResult, error) {
	repoPath, err := i.repoPath(p)
	if err != nil {
		return capability.IntegrationResult{}, err
	}
	number, err := requiredNumber(p)
	if err != nil {
		return capability.IntegrationResult{}, err
	}

	result, err := i.client.do(ctx, http.MethodGet, fmt.Sprintf("%s/pulls/%d", repoPath, number), nil)
	if err != nil {
		return capability.IntegrationResult{}, err
	}

	state := result.Get("state").String()
	merged := result.Get("merged").Bool()
	return capability.Success(fmt.Sprintf("Pull request #%d is %s", number, pullRequestStatus(state, merged)), map[string]interface{}{
		"number":    result.Get("number").Int(),
		"title":     result.Get("title").String(),
		"state":     state,
		"merged":    merged,
		"mergeable": result.Get("mergeable").Value(),
		"draft":     result.Get("draft").Bool(),
		"head":      result.Get("head.ref").String(),
		"headSha":   result.Get("head.sha").String(),
		"base":      result.Get("base.ref").String(),
		"author":    result.Get("user.login").String(),
		"url":       result.Get("html_url").String(),
	}), nil
}

func pullRequestStatus(state string, merged bool) string {
	if merged {
		return "merged"
	}
	return state
}

func (i *Integration) createBranch(ctx context.Context, p capability.Params) (capability.IntegrationResult, error) {
	repoPath, err := i.repoPath(p)
	if err != nil {
		return capability.IntegrationResult{}, err
	}
	branch, err := p.RequiredString("branch")
	if err != nil {
		return capability.IntegrationResult{}, err
	}

	from := p.StringOr("from", "")
	if from == "" {
		repo, err := i.client.do(ctx, http.MethodGet, repoPath, nil)
		if err != nil {
			return capability.IntegrationResult{}, err
		}
		from = repo.Get("default_branch").String()
	}

	ref, err := i.client.do(ctx, http.MethodGet, repoPath+"/git/ref/heads/"+from, nil)
	if err != nil {
		return capability.IntegrationResult{}, fmt.Errorf("failed to resolve branch %s: %w", from, err)
	}
	sha := ref.Get("object.sha").String()

	created, err := i.client.do(ctx, http.MethodPost, repoPath+"/git/refs", map[string]interface{}{
		"ref": "refs/heads/" + branch,
		"sha": sha,
	})
	if err != nil {
		return capability.IntegrationResult{}, err
	}

	logging.Info("GitHub", "Created branch %s from %s (%s) in %s", branch, from, sha, repoPath)
	return capability.Success(fmt.Sprintf("Created branch %s from %s", branch, from), map[string]interface{}{
		"branch": branch,
		"from":   from,
		"sha":    sha,
		"ref":    created.Get("ref").String(),
	}), nil
}
