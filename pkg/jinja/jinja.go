package jinja

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/nikolalohinski/gonja/v2"
	"github.com/nikolalohinski/gonja/v2/exec"
	"github.com/pkg/errors"
)

type Renderer struct {
	context         *exec.Context
	queryRenderLock *sync.Mutex
}

func init() { //nolint: gochecknoinits
	gonja.DefaultConfig.StrictUndefined = true
}

var (
	missingVariableRegex = regexp.MustCompile(`name\s+"([^"]+)"`)
	locationRegex        = regexp.MustCompile(`\(Line: \d+ Col: \d+, near ".*?"\)`)
)

type Context map[string]any

func NewRenderer(context Context) *Renderer {
	return &Renderer{
		context:         exec.NewContext(context),
		queryRenderLock: &sync.Mutex{},
	}
}

// RunContext describes a single run of the job as seen from templates.
type RunContext struct {
	StartDate        time.Time
	EndDate          time.Time
	Pipeline         string
	RunID            string
	UpstreamWorkflow string
	UpstreamTask     string
}

func (r RunContext) Variables() Context {
	return Context{
		"start_date":        r.StartDate.Format("2006-01-02"),
		"start_date_nodash": r.StartDate.Format("20060102"),
		"start_datetime":    r.StartDate.Format("2006-01-02T15:04:05"),
		"start_timestamp":   r.StartDate.Format("2006-01-02T15:04:05.000000Z07:00"),
		"end_date":          r.EndDate.Format("2006-01-02"),
		"end_date_nodash":   r.EndDate.Format("20060102"),
		"end_datetime":      r.EndDate.Format("2006-01-02T15:04:05"),
		"end_timestamp":     r.EndDate.Format("2006-01-02T15:04:05.000000Z07:00"),
		"pipeline":          r.Pipeline,
		"run_id":            r.RunID,
		"upstream_workflow": r.UpstreamWorkflow,
		"upstream_task":     r.UpstreamTask,
	}
}

func NewRendererForRun(run RunContext) *Renderer {
	return NewRenderer(run.Variables())
}

func (r *Renderer) Render(query string) (string, error) {
	r.queryRenderLock.Lock()

	tpl, err := gonja.FromString(query)
	if err != nil {
		r.queryRenderLock.Unlock()
		customError := findParserErrorType(err)
		if customError == "" {
			return "", errors.Wrap(err, "failed to parse the template")
		}

		return "", errors.New(customError)
	}
	r.queryRenderLock.Unlock()

	out, err := tpl.ExecuteToString(r.context)
	if err != nil {
		customError := findRenderErrorType(err)
		if customError == "" {
			return "", errors.Wrap(err, "failed to render the template")
		}

		return "", errors.New(customError)
	}

	return out, nil
}

func findRenderErrorType(err error) string {
	message := err.Error()
	errorBits := strings.Split(message, ": ")
	innermostErr := errorBits[len(errorBits)-1]

	if strings.HasPrefix(innermostErr, "filter '") && strings.HasSuffix(innermostErr, "' not found") {
		return innermostErr
	} else if strings.HasPrefix(innermostErr, "Unable to evaluate name ") {
		match := missingVariableRegex.FindStringSubmatch(innermostErr)
		if len(match) < 2 {
			return innermostErr
		}

		return "missing variable '" + match[1] + "'"
	}

	return ""
}

func findParserErrorType(err error) string {
	message := err.Error()

	if strings.Contains(message, "Unexpected EOF, expected tag else or endfor") {
		match := locationRegex.FindString(message)
		return "missing 'endfor' at " + match
	} else if strings.Contains(message, "Unexpected EOF, expected tag elif or else or endif") {
		match := locationRegex.FindString(message)
		return "missing end of the 'if' condition at " + match + ", did you forget to add 'endif'?"
	}

	return ""
}
