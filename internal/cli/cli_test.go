package cli

import (
	"bytes"
	"encoding/json"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"heston-pricer/internal/config"
	apperrors "heston-pricer/internal/errors"
	"heston-pricer/internal/logging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "valuations.db")
	cfg.UI.ColorEnabled = false
	return cfg
}

func run(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd(cfg, zerolog.Nop())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPriceCommand_JSON(t *testing.T) {
	out, err := run(t, testConfig(t), "price", "--json")
	if err != nil {
		t.Fatalf("price failed: %v\n%s", err, out)
	}

	var doc struct {
		BlackScholes struct {
			Price *float64 `json:"price"`
		} `json:"black_scholes"`
		Heston struct {
			Price  *float64 `json:"price"`
			Status string   `json:"status"`
		} `json:"heston"`
		Feller bool `json:"feller"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if doc.Heston.Status != "SUCCESS" || doc.Heston.Price == nil {
		t.Fatalf("heston = %+v", doc.Heston)
	}
	if math.Abs(*doc.Heston.Price-268.2277) > 0.05 {
		t.Errorf("heston price = %v", *doc.Heston.Price)
	}
	if doc.BlackScholes.Price == nil || math.Abs(*doc.BlackScholes.Price-308.6408) > 1e-3 {
		t.Errorf("black-scholes price = %v", doc.BlackScholes.Price)
	}
	if doc.Feller {
		t.Error("reference parameters violate the Feller condition")
	}
}

func TestPriceCommand_Text(t *testing.T) {
	out, err := run(t, testConfig(t), "price", "--concurrent")
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}
	for _, want := range []string{"HESTON vs BLACK-SCHOLES", "308.641", "Observed price : 295.000", "Feller condition"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPriceCommand_ConvergenceFailureIsReported(t *testing.T) {
	out, err := run(t, testConfig(t), "price", "--limit", "1")
	if err != nil {
		t.Fatalf("a convergence failure is a result, not an error: %v", err)
	}
	if !strings.Contains(out, "CONVERGENCE FAILURE") {
		t.Errorf("output missing failure notice:\n%s", out)
	}
}

func TestPriceCommand_FlagOverrides(t *testing.T) {
	out, err := run(t, testConfig(t), "price", "--json",
		"--spot", "100", "--strike", "100", "--maturity", "1", "--rate", "0.05", "--vol", "0.2",
		"--params", "0.04,2,0.04,0.001,0", "--observed", "10.45")
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}
	var doc struct {
		BlackScholes struct {
			Price float64 `json:"price"`
		} `json:"black_scholes"`
		Heston struct {
			Price float64 `json:"price"`
		} `json:"heston"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatal(err)
	}
	if math.Abs(doc.Heston.Price-doc.BlackScholes.Price) > 1e-3 {
		t.Errorf("heston %v vs bs %v", doc.Heston.Price, doc.BlackScholes.Price)
	}
}

func TestPriceCommand_StrictRejectsInvalidInput(t *testing.T) {
	_, err := run(t, testConfig(t), "price", "--strict", "--sigma", "0")
	if !apperrors.Is(err, apperrors.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}

	_, err = run(t, testConfig(t), "price", "--params", "1,2,3")
	if err == nil {
		t.Error("expected an error for a short parameter tuple")
	}
}

func TestHistory_SaveListShow(t *testing.T) {
	cfg := testConfig(t)

	if _, err := run(t, cfg, "price", "--save"); err != nil {
		t.Fatalf("price --save failed: %v", err)
	}
	if _, err := run(t, cfg, "price", "--save", "--limit", "1"); err != nil {
		t.Fatalf("price --save --limit 1 failed: %v", err)
	}

	out, err := run(t, cfg, "history", "list", "--json")
	if err != nil {
		t.Fatalf("history list failed: %v", err)
	}
	var docs []struct {
		ID          int64    `json:"id"`
		HestonPrice *float64 `json:"heston_price"`
		Status      string   `json:"status"`
	}
	if err := json.Unmarshal([]byte(out), &docs); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d valuations, want 2", len(docs))
	}
	var failed, succeeded int
	for _, d := range docs {
		switch d.Status {
		case "CONVERGENCE_FAILURE":
			failed++
			if d.HestonPrice != nil {
				t.Errorf("failed valuation has price %v", *d.HestonPrice)
			}
		case "SUCCESS":
			succeeded++
		}
	}
	if failed != 1 || succeeded != 1 {
		t.Errorf("statuses: %d failed, %d succeeded", failed, succeeded)
	}

	out, err = run(t, cfg, "history", "list", "--status", "success")
	if err != nil {
		t.Fatalf("history list --status failed: %v", err)
	}
	if !strings.Contains(out, "SUCCESS") || strings.Contains(out, "CONVERGENCE_FAILURE") {
		t.Errorf("status filter output:\n%s", out)
	}

	out, err = run(t, cfg, "history", "show", "1")
	if err != nil {
		t.Fatalf("history show failed: %v", err)
	}
	if !strings.Contains(out, "Valuation #1") {
		t.Errorf("show output:\n%s", out)
	}

	if _, err := run(t, cfg, "history", "show", "99"); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := run(t, cfg, "history", "list", "--status", "maybe"); !apperrors.Is(err, apperrors.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestHistory_Empty(t *testing.T) {
	out, err := run(t, testConfig(t), "history", "list")
	if err != nil {
		t.Fatalf("history list failed: %v", err)
	}
	if !strings.Contains(out, "No valuations recorded") {
		t.Errorf("output:\n%s", out)
	}
}

func TestConfigValidate(t *testing.T) {
	if _, err := run(t, testConfig(t), "config", "validate"); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	cfg := testConfig(t)
	cfg.Heston.Sigma = 0
	out, err := run(t, cfg, "config", "validate", "--json")
	if err == nil {
		t.Fatal("expected validation failure for sigma = 0")
	}
	if !strings.Contains(out, `"valid": false`) {
		t.Errorf("output:\n%s", out)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, testConfig(t), "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "hestonpricer v"+Version) {
		t.Errorf("output: %q", out)
	}
}

func TestLogConfig(t *testing.T) {
	lc := logConfig(config.LoggingConfig{Level: "debug", File: true})
	if lc.Level != "debug" || !lc.File || lc.Console {
		t.Errorf("explicit settings not applied: %+v", lc)
	}
	def := logging.DefaultLogConfig()
	if lc.FilePath != def.FilePath || lc.MaxSize != def.MaxSize || lc.MaxAge != def.MaxAge {
		t.Errorf("zero values should keep defaults: %+v", lc)
	}

	lc = logConfig(config.LoggingConfig{FilePath: "/tmp/p.log", MaxBackups: 9})
	if lc.FilePath != "/tmp/p.log" || lc.MaxBackups != 9 || lc.Level != def.Level {
		t.Errorf("overrides = %+v", lc)
	}
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	o := &Output{writer: &buf}
	table := NewTable(o, "ID", "Status")
	table.AddRow("1", "SUCCESS")
	table.AddRow("22", "CONVERGENCE_FAILURE")
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if lines[0] != "ID  Status" || lines[1] != "--  -------------------" || lines[3] != "22  CONVERGENCE_FAILURE" {
		t.Errorf("unexpected table:\n%s", buf.String())
	}
}

func TestPadRight(t *testing.T) {
	if got := PadRight("7", 3); got != "7  " {
		t.Errorf("PadRight() = %q", got)
	}
	if got := PadRight("\x1b[32mok\x1b[0m", 4); visibleLen(got) != 4 {
		t.Errorf("PadRight() ignored escapes: %q", got)
	}
}
