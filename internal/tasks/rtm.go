package tasks

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultRTMEndpoint is the Remember The Milk REST endpoint.
const DefaultRTMEndpoint = "https://api.rememberthemilk.com/services/rest/"

// Characters Smart Add would interpret inside a task name.
var smartAddReplacer = strings.NewReplacer("!", " ", "#", " ", "*", " ", "^", " ", "@", " ", "/", " ")

// RTMOptions configures an RTM store.
type RTMOptions struct {
	APIKey     string
	Secret     string
	Token      string
	Tag        string
	ListID     string
	Endpoint   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// RTM creates tasks in Remember The Milk using Smart Add, one note per body
// line.
type RTM struct {
	opts     RTMOptions
	client   *http.Client
	logger   *zap.Logger
	timeline string
}

// NewRTM creates an RTM store.
func NewRTM(opts RTMOptions, logger *zap.Logger) *RTM {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultRTMEndpoint
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RTM{opts: opts, client: client, logger: logger}
}

// RTMError is a failure reported by the API itself.
type RTMError struct {
	Method string
	Code   string
	Msg    string
}

func (e *RTMError) Error() string {
	return fmt.Sprintf("rtm %s: %s (code %s)", e.Method, e.Msg, e.Code)
}

type rtmTask struct {
	ID string `json:"id"`
}

type rtmSeries struct {
	ID   string             `json:"id"`
	Task oneOrMany[rtmTask] `json:"task"`
}

type rtmList struct {
	ID         string               `json:"id"`
	TaskSeries oneOrMany[rtmSeries] `json:"taskseries"`
}

type rtmResponse struct {
	Rsp struct {
		Stat     string   `json:"stat"`
		Timeline string   `json:"timeline"`
		List     *rtmList `json:"list"`
		Err      *struct {
			Code string `json:"code"`
			Msg  string `json:"msg"`
		} `json:"err"`
	} `json:"rsp"`
}

// oneOrMany decodes a JSON value that the API sends as an object when there
// is one element and as an array otherwise.
type oneOrMany[T any] []T

func (o *oneOrMany[T]) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		var many []T
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}
	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*o = []T{one}
	return nil
}

// SmartAddName turns a heading into a Smart Add string scheduling the task
// for today and tagging it.
func SmartAddName(heading string, tags []string) string {
	name := strings.Join(strings.Fields(smartAddReplacer.Replace(heading)), " ")
	name += " ^today"
	for _, tag := range tags {
		tag = strings.Join(strings.Fields(smartAddReplacer.Replace(tag)), "_")
		if tag != "" {
			name += " #" + tag
		}
	}
	return name
}

func (r *RTM) CreateTask(ctx context.Context, t Task) (Handle, error) {
	if r.timeline == "" {
		resp, err := r.call(ctx, "rtm.timelines.create", nil)
		if err != nil {
			return "", err
		}
		r.timeline = resp.Rsp.Timeline
	}

	var tags []string
	if r.opts.Tag != "" {
		tags = append(tags, r.opts.Tag)
	}
	tags = append(tags, t.Tags...)

	params := url.Values{
		"timeline": {r.timeline},
		"name":     {SmartAddName(t.Heading, tags)},
		"parse":    {"1"},
	}
	if r.opts.ListID != "" {
		params.Set("list_id", r.opts.ListID)
	}
	resp, err := r.call(ctx, "rtm.tasks.add", params)
	if err != nil {
		return "", err
	}
	list := resp.Rsp.List
	if list == nil || len(list.TaskSeries) == 0 || len(list.TaskSeries[0].Task) == 0 {
		return "", fmt.Errorf("rtm.tasks.add: response has no task")
	}
	series := list.TaskSeries[0]
	task := series.Task[0]
	handle := Handle(list.ID + "/" + series.ID + "/" + task.ID)

	for i, line := range t.Body {
		if strings.TrimSpace(line) == "" {
			continue
		}
		_, err := r.call(ctx, "rtm.tasks.notes.add", url.Values{
			"timeline":      {r.timeline},
			"list_id":       {list.ID},
			"taskseries_id": {series.ID},
			"task_id":       {task.ID},
			"note_title":    {""},
			"note_text":     {line},
		})
		if err != nil {
			// Notes are best effort once the task exists.
			r.logger.Warn("add note failed",
				zap.String("task", string(handle)), zap.Int("line", i), zap.Error(err))
		}
	}

	r.logger.Debug("task added", zap.String("task", string(handle)), zap.Int64("timestamp", t.Timestamp))
	return handle, nil
}

func (r *RTM) call(ctx context.Context, method string, params url.Values) (*rtmResponse, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("method", method)
	params.Set("api_key", r.opts.APIKey)
	params.Set("auth_token", r.opts.Token)
	params.Set("format", "json")
	params.Set("api_sig", Sign(r.opts.Secret, params))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.opts.Endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", method, err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: http %d", method, res.StatusCode)
	}

	var out rtmResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", method, err)
	}
	if out.Rsp.Stat != "ok" {
		e := &RTMError{Method: method, Msg: "unknown failure"}
		if out.Rsp.Err != nil {
			e.Code, e.Msg = out.Rsp.Err.Code, out.Rsp.Err.Msg
		}
		return nil, e
	}
	return &out, nil
}

// Sign computes the api_sig of params: the MD5 of the shared secret followed
// by every key and value, sorted by key.
func Sign(secret string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k != "api_sig" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(secret)
	for _, k := range keys {
		for _, v := range params[k] {
			b.WriteString(k)
			b.WriteString(v)
		}
	}
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
