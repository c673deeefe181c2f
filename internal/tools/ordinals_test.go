package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"gopkg.in/yaml.v3"

	"go.ordinalsmcp/internal/logging"
	"go.ordinalsmcp/internal/ordiscan"
)

type apiCall struct {
	method  string
	address string
	opts    ordiscan.ActivityOptions
}

// fakeAddressAPI records every call and answers with the configured data or error.
type fakeAddressAPI struct {
	mu    sync.Mutex
	data  json.RawMessage
	err   error
	calls []apiCall
}

func (f *fakeAddressAPI) record(c apiCall) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.data, f.err
}

func (f *fakeAddressAPI) RuneBalances(_ context.Context, address string) (json.RawMessage, error) {
	return f.record(apiCall{method: "RuneBalances", address: address})
}

func (f *fakeAddressAPI) BRC20Balances(_ context.Context, address string) (json.RawMessage, error) {
	return f.record(apiCall{method: "BRC20Balances", address: address})
}

func (f *fakeAddressAPI) RunesActivity(_ context.Context, address string, opts ordiscan.ActivityOptions) (json.RawMessage, error) {
	return f.record(apiCall{method: "RunesActivity", address: address, opts: opts})
}

func (f *fakeAddressAPI) BRC20Activity(_ context.Context, address string, opts ordiscan.ActivityOptions) (json.RawMessage, error) {
	return f.record(apiCall{method: "BRC20Activity", address: address, opts: opts})
}

func newTestRegistry(t *testing.T, api AddressAPI) *Registry {
	t.Helper()
	reg, err := NewOrdinalsRegistry(api, logging.Discard())
	if err != nil {
		t.Fatalf("NewOrdinalsRegistry: %v", err)
	}
	return reg
}

// normalize decodes a JSON or YAML document and re-encodes it as JSON so
// documents can be compared regardless of number representation.
func normalize(t *testing.T, value any) string {
	t.Helper()
	out, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(out)
}

var allTools = []struct {
	name   string
	method string
}{
	{ToolRuneBalance, "RuneBalances"},
	{ToolBRC20Balance, "BRC20Balances"},
	{ToolRunesActivity, "RunesActivity"},
	{ToolBRC20Activity, "BRC20Activity"},
}

func TestOrdinalsCatalog(t *testing.T) {
	reg := newTestRegistry(t, &fakeAddressAPI{})
	want := []string{ToolRuneBalance, ToolBRC20Balance, ToolRunesActivity, ToolBRC20Activity}
	got := reg.Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for _, d := range reg.Descriptors() {
		if d.Description == "" {
			t.Errorf("%s has no description", d.Name)
		}
		if len(d.Schema.Required) != 1 || d.Schema.Required[0] != "address" {
			t.Errorf("%s required = %v", d.Name, d.Schema.Required)
		}
	}
}

func TestOrdinalsSuccessRoundTrips(t *testing.T) {
	payload := json.RawMessage(`[
		{"rune":"UNCOMMON•GOODS","balance":"1000","meta":{"divisibility":0,"symbol":"⧉"}},
		{"rune":"DOG•GO•TO•THE•MOON","balance":"250.5","confirmed":true,"spacers":[1,2]}
	]`)
	var want any
	if err := json.Unmarshal(payload, &want); err != nil {
		t.Fatal(err)
	}

	for _, tool := range allTools {
		t.Run(tool.name, func(t *testing.T) {
			api := &fakeAddressAPI{data: payload}
			reg := newTestRegistry(t, api)

			res, err := reg.Dispatch(context.Background(), tool.name, json.RawMessage(`{"address":"bc1pexample"}`))
			if err != nil {
				t.Fatalf("Dispatch error: %v", err)
			}
			if res.IsError {
				t.Fatalf("unexpected failure: %s", res.Text)
			}

			var got any
			if err := yaml.Unmarshal([]byte(res.Text), &got); err != nil {
				t.Fatalf("payload is not YAML: %v\n%s", err, res.Text)
			}
			if normalize(t, got) != normalize(t, want) {
				t.Fatalf("round trip mismatch:\n got %s\nwant %s", normalize(t, got), normalize(t, want))
			}

			if len(api.calls) != 1 || api.calls[0].method != tool.method || api.calls[0].address != "bc1pexample" {
				t.Fatalf("calls = %+v", api.calls)
			}
		})
	}
}

func TestOrdinalsFailureResult(t *testing.T) {
	for _, tool := range allTools {
		t.Run(tool.name, func(t *testing.T) {
			api := &fakeAddressAPI{err: errors.New("boom")}
			reg := newTestRegistry(t, api)

			res, err := reg.Dispatch(context.Background(), tool.name, json.RawMessage(`{"address":"bc1pexample"}`))
			if err != nil {
				t.Fatalf("external failures must not escape as errors: %v", err)
			}
			if !res.IsError {
				t.Fatal("expected error flag")
			}
			if !strings.Contains(res.Text, "boom") {
				t.Fatalf("Text = %q, want it to contain boom", res.Text)
			}
		})
	}
}

func TestOrdinalsAPIErrorMessage(t *testing.T) {
	api := &fakeAddressAPI{err: &ordiscan.APIError{StatusCode: 401, Message: "Invalid API key"}}
	reg := newTestRegistry(t, api)

	res, err := reg.Dispatch(context.Background(), ToolRuneBalance, json.RawMessage(`{"address":"bc1pexample"}`))
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if !res.IsError || !strings.Contains(res.Text, "Invalid API key") {
		t.Fatalf("result = %+v", res)
	}
}

func TestOrdinalsActivityForwarding(t *testing.T) {
	tests := []struct {
		name     string
		args     string
		wantPage *int
		wantSort string
	}{
		{name: "page absent", args: `{"address":"bc1q"}`},
		{name: "page given", args: `{"address":"bc1q","page":3}`, wantPage: intPtr(3)},
		{name: "sort newest", args: `{"address":"bc1q","sort":"newest"}`, wantSort: "newest"},
		{name: "sort oldest", args: `{"address":"bc1q","sort":"oldest"}`, wantSort: "oldest"},
		{name: "both", args: `{"address":"bc1q","page":1,"sort":"oldest"}`, wantPage: intPtr(1), wantSort: "oldest"},
	}

	for _, tool := range []string{ToolRunesActivity, ToolBRC20Activity} {
		for _, tt := range tests {
			t.Run(tool+"/"+tt.name, func(t *testing.T) {
				api := &fakeAddressAPI{data: json.RawMessage(`[]`)}
				reg := newTestRegistry(t, api)

				if _, err := reg.Dispatch(context.Background(), tool, json.RawMessage(tt.args)); err != nil {
					t.Fatalf("Dispatch error: %v", err)
				}
				if len(api.calls) != 1 {
					t.Fatalf("calls = %d, want 1", len(api.calls))
				}
				opts := api.calls[0].opts
				switch {
				case tt.wantPage == nil && opts.Page != nil:
					t.Errorf("page = %d, want absent", *opts.Page)
				case tt.wantPage != nil && (opts.Page == nil || *opts.Page != *tt.wantPage):
					t.Errorf("page = %v, want %d", opts.Page, *tt.wantPage)
				}
				if opts.Sort != tt.wantSort {
					t.Errorf("sort = %q, want %q", opts.Sort, tt.wantSort)
				}
			})
		}
	}
}

func TestOrdinalsRejectsInvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		tool string
		args string
	}{
		{name: "missing address", tool: ToolRuneBalance, args: `{}`},
		{name: "no arguments", tool: ToolBRC20Balance, args: ``},
		{name: "empty address", tool: ToolRuneBalance, args: `{"address":""}`},
		{name: "address not string", tool: ToolBRC20Balance, args: `{"address":42}`},
		{name: "activity missing address", tool: ToolRunesActivity, args: `{"page":1}`},
		{name: "unknown sort", tool: ToolRunesActivity, args: `{"address":"bc1q","sort":"random"}`},
		{name: "fractional page", tool: ToolBRC20Activity, args: `{"address":"bc1q","page":1.5}`},
		{name: "page as string", tool: ToolBRC20Activity, args: `{"address":"bc1q","page":"2"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAddressAPI{data: json.RawMessage(`[]`)}
			reg := newTestRegistry(t, api)

			_, err := reg.Dispatch(context.Background(), tt.tool, json.RawMessage(tt.args))
			if !errors.Is(err, ErrInvalidParams) {
				t.Fatalf("error = %v, want ErrInvalidParams", err)
			}
			if len(api.calls) != 0 {
				t.Fatalf("external API called %d times", len(api.calls))
			}
		})
	}
}
