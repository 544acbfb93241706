package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/ctk/internal/cache"
	"github.com/dshills/ctk/internal/logging"
	"github.com/dshills/ctk/internal/remote"
)

// DefaultAPIURL is the Linear GraphQL endpoint.
const DefaultAPIURL = "https://api.linear.app/graphql"

const (
	service = "Linear"

	// CommentMarker prefixes comments posted by ctk.
	CommentMarker = "🤖 "

	kindStates = "linear-states"
	kindLabels = "linear-labels"
)

// Client talks to the Linear GraphQL API on behalf of one team.
type Client struct {
	apiKey  string
	teamID  string
	apiURL  string
	httpCli *http.Client
	policy  remote.Policy
	cache   *cache.Cache
	logger  *zap.Logger
}

// NewClient creates a Linear client. The cache may be nil.
func NewClient(apiKey, teamID, apiURL string, c *cache.Cache, logger *zap.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Linear API key is not set (LINEAR_API_KEY or linear.apiKey)")
	}
	if teamID == "" {
		return nil, fmt.Errorf("Linear team is not set (LINEAR_TEAM_ID or linear.teamId)")
	}
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		apiKey:  apiKey,
		teamID:  teamID,
		apiURL:  apiURL,
		httpCli: &http.Client{Timeout: 30 * time.Second},
		policy:  remote.DefaultPolicy(),
		cache:   c,
		logger:  logging.OrNop(logger),
	}, nil
}

// Task is an issue as listed by Tasks.
type Task struct {
	ID          string   `json:"id"`
	Identifier  string   `json:"identifier"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	State       string   `json:"state"`
	URL         string   `json:"url"`
	Labels      []string `json:"labels"`
}

// NewTask holds the fields for CreateTask. An empty State leaves the
// team's default state in place.
type NewTask struct {
	Title       string
	Description string
	State       string
	Labels      []string
}

// CreatedTask identifies an issue returned by CreateTask.
type CreatedTask struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	URL        string `json:"url"`
}

// GraphQLError carries the errors array of a GraphQL response.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "Linear GraphQL error: " + strings.Join(e.Messages, "; ")
}

const tasksQuery = `query($teamId: ID!, $state: String!) {
  issues(filter: { team: { id: { eq: $teamId } }, state: { name: { eq: $state } } }, first: 50) {
    nodes {
      id
      identifier
      title
      description
      url
      state { name }
      labels { nodes { name } }
    }
  }
}`

// Tasks returns the first 50 team issues in the named workflow state.
func (c *Client) Tasks(ctx context.Context, state string) ([]Task, error) {
	var data struct {
		Issues struct {
			Nodes []struct {
				ID          string `json:"id"`
				Identifier  string `json:"identifier"`
				Title       string `json:"title"`
				Description string `json:"description"`
				URL         string `json:"url"`
				State       struct {
					Name string `json:"name"`
				} `json:"state"`
				Labels struct {
					Nodes []struct {
						Name string `json:"name"`
					} `json:"nodes"`
				} `json:"labels"`
			} `json:"nodes"`
		} `json:"issues"`
	}
	vars := map[string]any{"teamId": c.teamID, "state": state}
	if err := c.graphql(ctx, tasksQuery, vars, &data); err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	tasks := make([]Task, 0, len(data.Issues.Nodes))
	for _, n := range data.Issues.Nodes {
		t := Task{
			ID:          n.ID,
			Identifier:  n.Identifier,
			Title:       n.Title,
			Description: n.Description,
			State:       n.State.Name,
			URL:         n.URL,
		}
		for _, l := range n.Labels.Nodes {
			t.Labels = append(t.Labels, l.Name)
		}
		tasks = append(tasks, t)
	}
	c.log().Debug("fetched tasks", zap.String("state", state), zap.Int("count", len(tasks)))
	return tasks, nil
}

const createMutation = `mutation($input: IssueCreateInput!) {
  issueCreate(input: $input) {
    success
    issue { id identifier title url }
  }
}`

// CreateTask creates an issue in the team. Unknown label names are
// skipped with a warning; an unknown state is an error.
func (c *Client) CreateTask(ctx context.Context, t NewTask) (*CreatedTask, error) {
	if strings.TrimSpace(t.Title) == "" {
		return nil, fmt.Errorf("task title is required")
	}
	input := map[string]any{
		"teamId":      c.teamID,
		"title":       t.Title,
		"description": t.Description,
	}
	if t.State != "" {
		id, err := c.stateID(ctx, t.State)
		if err != nil {
			return nil, err
		}
		input["stateId"] = id
	}
	if len(t.Labels) > 0 {
		ids, err := c.labelIDs(ctx, t.Labels)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			input["labelIds"] = ids
		}
	}

	var data struct {
		IssueCreate struct {
			Success bool        `json:"success"`
			Issue   CreatedTask `json:"issue"`
		} `json:"issueCreate"`
	}
	if err := c.graphql(ctx, createMutation, map[string]any{"input": input}, &data); err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	if !data.IssueCreate.Success {
		return nil, fmt.Errorf("creating task: Linear reported failure")
	}
	c.log().Info("created task", zap.String("identifier", data.IssueCreate.Issue.Identifier))
	return &data.IssueCreate.Issue, nil
}

const updateStateMutation = `mutation($id: String!, $stateId: String!) {
  issueUpdate(id: $id, input: { stateId: $stateId }) { success }
}`

const commentMutation = `mutation($issueId: String!, $body: String!) {
  commentCreate(input: { issueId: $issueId, body: $body }) { success }
}`

// UpdateTask moves an issue to state and then adds comment. Either may be
// empty. The comment is skipped when the state change fails.
func (c *Client) UpdateTask(ctx context.Context, id, state, comment string) error {
	if state == "" && comment == "" {
		return fmt.Errorf("nothing to update: state or comment required")
	}
	if state != "" {
		stateID, err := c.stateID(ctx, state)
		if err != nil {
			return err
		}
		var data struct {
			IssueUpdate struct {
				Success bool `json:"success"`
			} `json:"issueUpdate"`
		}
		vars := map[string]any{"id": id, "stateId": stateID}
		if err := c.graphql(ctx, updateStateMutation, vars, &data); err != nil {
			return fmt.Errorf("updating %s: %w", id, err)
		}
		if !data.IssueUpdate.Success {
			return fmt.Errorf("updating %s: Linear reported failure", id)
		}
		c.log().Info("updated task state", zap.String("task", id), zap.String("state", state))
	}
	if comment != "" {
		var data struct {
			CommentCreate struct {
				Success bool `json:"success"`
			} `json:"commentCreate"`
		}
		vars := map[string]any{"issueId": id, "body": CommentMarker + comment}
		if err := c.graphql(ctx, commentMutation, vars, &data); err != nil {
			return fmt.Errorf("commenting on %s: %w", id, err)
		}
		if !data.CommentCreate.Success {
			return fmt.Errorf("commenting on %s: Linear reported failure", id)
		}
	}
	return nil
}

const statesQuery = `query($teamId: ID!) {
  workflowStates(filter: { team: { id: { eq: $teamId } } }) { nodes { id name } }
}`

const labelsQuery = `query($teamId: ID!) {
  issueLabels(filter: { team: { id: { eq: $teamId } } }) { nodes { id name } }
}`

func (c *Client) stateID(ctx context.Context, name string) (string, error) {
	ids, err := c.namedIDs(ctx, kindStates, statesQuery, "workflowStates", name)
	if err != nil {
		return "", fmt.Errorf("resolving state %q: %w", name, err)
	}
	id, ok := ids[name]
	if !ok {
		return "", fmt.Errorf("unknown workflow state %q", name)
	}
	return id, nil
}

func (c *Client) labelIDs(ctx context.Context, names []string) ([]string, error) {
	ids, err := c.namedIDs(ctx, kindLabels, labelsQuery, "issueLabels", names...)
	if err != nil {
		return nil, fmt.Errorf("resolving labels: %w", err)
	}
	var out []string
	for _, n := range names {
		id, ok := ids[n]
		if !ok {
			c.log().Warn("unknown label skipped", zap.String("label", n))
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// namedIDs returns the team's name to ID map for field, from the cache when
// it contains every wanted name.
func (c *Client) namedIDs(ctx context.Context, kind, query, field string, want ...string) (map[string]string, error) {
	key := cache.BuildKey(kind, c.teamID)
	var ids map[string]string
	if c.cache.Get(key, &ids) && hasAll(ids, want) {
		return ids, nil
	}

	var data map[string]struct {
		Nodes []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"nodes"`
	}
	if err := c.graphql(ctx, query, map[string]any{"teamId": c.teamID}, &data); err != nil {
		return nil, err
	}
	ids = make(map[string]string)
	for _, n := range data[field].Nodes {
		ids[n.Name] = n.ID
	}
	if err := c.cache.Put(kind, key, ids); err != nil {
		c.log().Debug("cache write failed", zap.String("kind", kind), zap.Error(err))
	}
	return ids, nil
}

func hasAll(ids map[string]string, want []string) bool {
	for _, w := range want {
		if _, ok := ids[w]; !ok {
			return false
		}
	}
	return true
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// graphql posts one operation with retries and decodes data into out.
// A response carrying errors is not retried.
func (c *Client) graphql(ctx context.Context, query string, vars map[string]any, out any) error {
	payload, err := json.Marshal(map[string]any{"query": query, "variables": vars})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	var body []byte
	err = remote.Do(ctx, c.policy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
		if err != nil {
			return remote.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("Authorization", c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpCli.Do(req)
		if err != nil {
			c.log().Debug("Linear request failed", zap.Error(err))
			return fmt.Errorf("posting to Linear: %w", err)
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		return remote.CheckResponse(service, resp, body)
	})
	if err != nil {
		return err
	}

	var env gqlResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	if len(env.Errors) > 0 {
		gerr := &GraphQLError{}
		for _, e := range env.Errors {
			gerr.Messages = append(gerr.Messages, e.Message)
		}
		return gerr
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("parsing response data: %w", err)
		}
	}
	return nil
}

func (c *Client) log() *zap.Logger { return logging.OrNop(c.logger) }
