package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
)

// target is one request replayed against both deployments. Files maps multipart field names to
// local paths; Keys limits the body comparison to the listed top-level fields.
type target struct {
	Method   string            `json:"method"`
	Path     string            `json:"path"`
	Files    map[string]string `json:"files,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
	JSON     json.RawMessage   `json:"json,omitempty"`
	Keys     []string          `json:"keys,omitempty"`
	Critical bool              `json:"critical"`
}

type config struct {
	Targets []target `json:"targets"`
}

type comparison struct {
	Target         target
	LegacyStatus   int
	GoStatus       int
	StatusMatch    bool
	BodyMatch      bool
	Error          error
	DurationGo     time.Duration
	DurationLegacy time.Duration
}

func main() {
	var (
		goBase      string
		legacyBase  string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&goBase, "go-base", "http://localhost:8080/api", "Go API base URL")
	flag.StringVar(&legacyBase, "legacy-base", "http://localhost:5000/api", "Legacy API base URL")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "shadow_compare", "targets.json"), "Path to JSON targets file")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "HTTP client timeout")
	flag.Parse()

	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}
	baseDir := filepath.Dir(targetsPath)

	client := &http.Client{Timeout: timeout}
	var (
		comparisons  []comparison
		breaking     int
		optionalDiff int
	)

	for _, t := range targets {
		comp := compareTarget(client, goBase, legacyBase, baseDir, t)
		if comp.Error != nil || !comp.StatusMatch || !comp.BodyMatch {
			if t.Critical {
				breaking++
			} else if comp.Error == nil {
				optionalDiff++
			}
		}
		comparisons = append(comparisons, comp)
	}

	printReport(comparisons)

	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optionalDiff)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return cfg.Targets, nil
}

func compareTarget(client *http.Client, goBase, legacyBase, baseDir string, tgt target) comparison {
	comp := comparison{Target: tgt}
	goBody, goStatus, goDur, goErr := performRequest(client, goBase, baseDir, tgt)
	legacyBody, legacyStatus, legacyDur, legacyErr := performRequest(client, legacyBase, baseDir, tgt)
	comp.DurationGo = goDur
	comp.DurationLegacy = legacyDur

	if goErr != nil {
		comp.Error = fmt.Errorf("go request failed: %w", goErr)
		return comp
	}
	if legacyErr != nil {
		comp.Error = fmt.Errorf("legacy request failed: %w", legacyErr)
		return comp
	}

	comp.GoStatus = goStatus
	comp.LegacyStatus = legacyStatus
	comp.StatusMatch = goStatus == legacyStatus
	comp.BodyMatch = bodiesEqual(unwrapEnvelope(goBody), legacyBody, tgt.Keys)
	return comp
}

func performRequest(client *http.Client, base, baseDir string, tgt target) ([]byte, int, time.Duration, error) {
	if client == nil {
		return nil, 0, 0, errors.New("nil client")
	}
	method := strings.ToUpper(strings.TrimSpace(tgt.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := tgt.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	url := strings.TrimRight(base, "/") + path

	body, contentType, err := requestBody(baseDir, tgt)
	if err != nil {
		return nil, 0, 0, err
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, 0, 0, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("read body: %w", err)
	}
	return data, resp.StatusCode, time.Since(start), nil
}

func requestBody(baseDir string, tgt target) (io.Reader, string, error) {
	if len(tgt.JSON) > 0 {
		return bytes.NewReader(tgt.JSON), "application/json", nil
	}
	if len(tgt.Files) == 0 && len(tgt.Fields) == 0 {
		return nil, "", nil
	}

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for _, field := range sortedKeys(tgt.Files) {
		p := tgt.Files[field]
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, "", err
		}
		part, err := writer.CreateFormFile(field, filepath.Base(p))
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(data); err != nil {
			return nil, "", err
		}
	}
	for _, field := range sortedKeys(tgt.Fields) {
		if err := writer.WriteField(field, tgt.Fields[field]); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf, writer.FormDataContentType(), nil
}

// unwrapEnvelope returns the data member of the Go envelope so it can be compared to the bare
// legacy payload.
func unwrapEnvelope(body []byte) []byte {
	var env struct {
		Data  json.RawMessage `json:"data"`
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return body
	}
	if len(env.Data) > 0 {
		return env.Data
	}
	if len(env.Error) > 0 {
		return env.Error
	}
	return body
}

func bodiesEqual(a, b []byte, keys []string) bool {
	if len(keys) == 0 && bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b)) {
		return true
	}

	var aj, bj interface{}
	if err := json.Unmarshal(a, &aj); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bj); err != nil {
		return false
	}
	if len(keys) > 0 {
		aj, bj = pick(aj, keys), pick(bj, keys)
	}
	normalize(&aj)
	normalize(&bj)
	return reflect.DeepEqual(aj, bj)
}

func pick(v interface{}, keys []string) interface{} {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return v
	}
	out := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		out[k] = obj[k]
	}
	return out
}

func normalize(v *interface{}) {
	switch val := (*v).(type) {
	case map[string]interface{}:
		for k, v2 := range val {
			normalize(&v2)
			val[k] = v2
		}
	case []interface{}:
		for i, v2 := range val {
			normalize(&v2)
			val[i] = v2
		}
	case string:
		// line endings differ between CSV writers
		*v = strings.ReplaceAll(val, "\r\n", "\n")
	case float64:
		if val == float64(int64(val)) {
			*v = int64(val)
		}
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func printReport(results []comparison) {
	color.Cyan("Shadow Compare Report")
	fmt.Println("======================")
	for _, res := range results {
		switch {
		case res.Error != nil:
			color.Red("[ERROR] %s %s", res.Target.Method, res.Target.Path)
		case !res.StatusMatch || !res.BodyMatch:
			color.Yellow("[DIFF] %s %s", res.Target.Method, res.Target.Path)
		default:
			color.Green("[OK] %s %s", res.Target.Method, res.Target.Path)
		}
		fmt.Printf("  Go Status: %d (%s)\n", res.GoStatus, res.DurationGo)
		fmt.Printf("  Legacy Status: %d (%s)\n", res.LegacyStatus, res.DurationLegacy)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
		} else {
			fmt.Printf("  Status match: %t | Body match: %t | Critical: %t\n", res.StatusMatch, res.BodyMatch, res.Target.Critical)
		}
	}
}
