package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kylerisse/bottled/pkg/service"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestList(t *testing.T) {
	out, _, err := execute(t, "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 services, got %d: %q", len(lines), out)
	}
	want := "echo\tmessage string (required), times int, upcase bool, meta any"
	if lines[0] != want {
		t.Errorf("expected %q, got %q", want, lines[0])
	}
	if !strings.HasPrefix(lines[1], "hostname\t") {
		t.Errorf("expected hostname second, got %q", lines[1])
	}
}

func TestDescribe(t *testing.T) {
	out, _, err := execute(t, "describe", "hostname")
	if err != nil {
		t.Fatalf("describe failed: %v", err)
	}
	if out != "name string (required)\n" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestDescribe_JSON(t *testing.T) {
	out, _, err := execute(t, "describe", "echo", "--json")
	if err != nil {
		t.Fatalf("describe failed: %v", err)
	}
	var views []attributeView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(views) != 4 {
		t.Fatalf("expected 4 attributes, got %d", len(views))
	}
	if views[0] != (attributeView{Name: "message", Type: "string", Required: true}) {
		t.Errorf("unexpected first attribute %+v", views[0])
	}
	if views[3].Type != "any" {
		t.Errorf("expected meta to be unconstrained, got %q", views[3].Type)
	}
}

func TestDescribe_Unknown(t *testing.T) {
	_, _, err := execute(t, "describe", "nope")
	if !errors.Is(err, service.ErrUnknownService) {
		t.Errorf("expected ErrUnknownService, got %v", err)
	}
}

func TestCall(t *testing.T) {
	out, _, err := execute(t, "call", "echo", "--set", "message=hi", "--set", "times=2")
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	want := `{"success":true,"attributes":{"message":"hi hi","times":2}}` + "\n"
	if out != want {
		t.Errorf("expected %q, got %q", want, out)
	}
}

func TestCall_File(t *testing.T) {
	path := writeFile(t, "attrs.yaml", "message: hey\nupcase: true\n")

	out, _, err := execute(t, "call", "echo", "-f", path, "--set", "times=3")
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if !strings.Contains(out, `"message":"HEY HEY HEY"`) {
		t.Errorf("unexpected output %q", out)
	}
}

func TestCall_SetOverridesFile(t *testing.T) {
	path := writeFile(t, "attrs.json", `{"message": "from file"}`)

	out, _, err := execute(t, "call", "echo", "-f", path, "--set", "message=from flag", "--get", "attributes.message")
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if out != "from flag\n" {
		t.Errorf("expected 'from flag', got %q", out)
	}
}

func TestCall_Get(t *testing.T) {
	out, _, err := execute(t, "call", "hostname", "--set", "name=Example.COM", "--get", "attributes.fqdn")
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if out != "example.com.\n" {
		t.Errorf("expected 'example.com.', got %q", out)
	}

	if _, _, err := execute(t, "call", "hostname", "--set", "name=example.com", "--get", "attributes.nope"); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestCall_Yield(t *testing.T) {
	out, _, err := execute(t, "call", "echo", "--set", "message=hi", "--yield", "yo", "--get", "attributes.message")
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if out != "yo\n" {
		t.Errorf("expected 'yo', got %q", out)
	}
}

func TestCall_FailedResponse(t *testing.T) {
	out, _, err := execute(t, "call", "echo", "--set", "message=hi", "--set", "times=-1")
	if !errors.Is(err, errFailedResponse) {
		t.Fatalf("expected errFailedResponse, got %v", err)
	}
	if !strings.HasPrefix(out, `{"success":false`) {
		t.Errorf("expected the failed response to be printed, got %q", out)
	}
}

func TestCall_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"missing required", []string{"call", "echo", "--set", "times=2"}, service.ErrRequiredArgumentNotFound},
		{"wrong type", []string{"call", "echo", "--set", "message=hi", "--set", "times=two"}, service.ErrIllegalType},
		{"unknown attribute", []string{"call", "echo", "--set", "message=hi", "--set", "volume=11"}, service.ErrUnknownAttribute},
		{"unknown service", []string{"call", "nope"}, service.ErrUnknownService},
		{"missing file", []string{"call", "echo", "-f", "/nonexistent/attrs.yaml"}, os.ErrNotExist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCall_InvalidSet(t *testing.T) {
	if _, _, err := execute(t, "call", "echo", "--set", "message"); err == nil {
		t.Error("expected error for --set without '='")
	}
}

func TestCall_Metrics(t *testing.T) {
	_, errOut, err := execute(t, "call", "echo", "--set", "message=hi", "--metrics")
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if !strings.Contains(errOut, `bottled_invocations_total{outcome="success",service="echo"} 1`) {
		t.Errorf("expected invocation counter in stderr, got %q", errOut)
	}
}

func TestRun(t *testing.T) {
	path := writeFile(t, "plan.yaml", `
steps:
  - name: greet
    service: echo
    attributes:
      message: hello
  - service: hostname
    attributes:
      name: example.org
`)

	out, _, err := execute(t, "run", path)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 outcome lines, got %d: %q", len(lines), out)
	}

	var first struct {
		Step     string `json:"step"`
		Service  string `json:"service"`
		Response struct {
			Success    bool           `json:"success"`
			Attributes map[string]any `json:"attributes"`
		} `json:"response"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("invalid JSON line: %v", err)
	}
	if first.Step != "greet" || first.Service != "echo" || !first.Response.Success {
		t.Errorf("unexpected first outcome %+v", first)
	}
	if !strings.Contains(lines[1], `"step":"hostname-1"`) {
		t.Errorf("expected defaulted step name, got %q", lines[1])
	}
}

func TestRun_Failures(t *testing.T) {
	path := writeFile(t, "plan.yaml", `
steps:
  - service: echo
    attributes:
      message: hi
      times: -1
  - service: echo
    attributes:
      message: ok
`)

	out, _, err := execute(t, "run", path)
	if !errors.Is(err, errFailedResponse) {
		t.Fatalf("expected errFailedResponse, got %v", err)
	}
	if n := strings.Count(out, "\n"); n != 2 {
		t.Errorf("expected both steps to run, got %d lines", n)
	}
}

func TestRun_StepError(t *testing.T) {
	path := writeFile(t, "plan.yaml", "steps:\n  - service: nope\n")

	out, _, err := execute(t, "run", path)
	if !errors.Is(err, service.ErrUnknownService) {
		t.Fatalf("expected ErrUnknownService, got %v", err)
	}
	if !strings.Contains(out, `"error":`) {
		t.Errorf("expected the error to be reported, got %q", out)
	}
}

func TestLogging_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("BOTTLED_LOG_LEVEL", "error")
	t.Setenv("BOTTLED_LOG_FORMAT", "xml")

	_, errOut, err := execute(t, "--log-level", "debug", "--log-format", "json", "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(errOut, `"msg":"Dispatcher ready"`) {
		t.Errorf("expected a JSON debug entry, got %q", errOut)
	}
}

func TestConfig_InvalidEnv(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"BOTTLED_LOG_LEVEL", "loud"},
		{"BOTTLED_LOG_FORMAT", "xml"},
		{"BOTTLED_RATE", "fast"},
		{"BOTTLED_BURST", "many"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, _, err := execute(t, "list"); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestConfig_Limiter(t *testing.T) {
	if l, err := (config{Rate: 0, Burst: 1}).newLimiter(); err != nil || l != nil {
		t.Errorf("expected no limiter for rate 0, got %v, %v", l, err)
	}
	if _, err := (config{Rate: 5, Burst: 0}).newLimiter(); err == nil {
		t.Error("expected error for zero burst with a rate")
	}
	l, err := (config{Rate: 5, Burst: 2}).newLimiter()
	if err != nil {
		t.Fatalf("newLimiter failed: %v", err)
	}
	if l.Burst() != 2 {
		t.Errorf("expected burst 2, got %d", l.Burst())
	}
}

func TestCall_RateFlag(t *testing.T) {
	if _, _, err := execute(t, "--rate", "100", "--burst", "1", "call", "echo", "--set", "message=hi"); err != nil {
		t.Errorf("call with limiter failed: %v", err)
	}
}

func TestParseSet(t *testing.T) {
	tests := []struct {
		input string
		key   string
		value any
	}{
		{"message=hi", "message", "hi"},
		{"times=3", "times", 3},
		{"upcase=true", "upcase", true},
		{"ratio=1.5", "ratio", 1.5},
		{"empty=", "empty", ""},
		{"eq=a=b", "eq", "a=b"},
		{"quoted='3'", "quoted", "3"},
	}

	for _, tt := range tests {
		key, value, err := parseSet(tt.input)
		if err != nil {
			t.Errorf("parseSet(%q) failed: %v", tt.input, err)
			continue
		}
		if key != tt.key || value != tt.value {
			t.Errorf("parseSet(%q) = %q, %#v, want %q, %#v", tt.input, key, value, tt.key, tt.value)
		}
	}

	if _, _, err := parseSet("=x"); err == nil {
		t.Error("expected error for empty key")
	}
}
