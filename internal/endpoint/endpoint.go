package endpoint

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/five82/skiff/internal/apistore"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

var methods = map[string]bool{
	"GET":    true,
	"POST":   true,
	"PUT":    true,
	"PATCH":  true,
	"DELETE": true,
}

// Config describes an endpoint.
type Config struct {
	Method string
	// Path is the URL path; segments written as [name] are path parameters.
	Path        string
	QueryKey    apistore.QueryKey
	Description string
}

// Definition is a resolved endpoint declaration.
type Definition struct {
	method      string
	segments    []string
	params      []string
	queryKey    apistore.QueryKey
	description string
}

// New validates cfg and returns its Definition.
func New(cfg Config) (*Definition, error) {
	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	if !methods[method] {
		return nil, fmt.Errorf("unsupported method %q", cfg.Method)
	}
	path := strings.TrimSpace(cfg.Path)
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("path %q must start with /", cfg.Path)
	}

	d := &Definition{
		method:      method,
		queryKey:    cfg.QueryKey,
		description: strings.TrimSpace(cfg.Description),
	}
	seen := make(map[string]bool)
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		if seg == "" {
			continue
		}
		if name, ok := placeholder(seg); ok {
			if name == "" {
				return nil, fmt.Errorf("path %q has an empty parameter", cfg.Path)
			}
			if seen[name] {
				return nil, fmt.Errorf("path %q repeats parameter %q", cfg.Path, name)
			}
			seen[name] = true
			d.params = append(d.params, name)
		}
		d.segments = append(d.segments, seg)
	}
	return d, nil
}

// MustNew is New for package-level declarations.
func MustNew(cfg Config) *Definition {
	d, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return d
}

func placeholder(seg string) (string, bool) {
	if strings.HasPrefix(seg, "[") && strings.HasSuffix(seg, "]") {
		return strings.TrimSpace(seg[1 : len(seg)-1]), true
	}
	return "", false
}

// Method implements apistore.Endpoint.
func (d *Definition) Method() string { return d.method }

// Path implements apistore.Endpoint. Parameters keep their [name] form.
func (d *Definition) Path() []string {
	out := make([]string, len(d.segments))
	copy(out, d.segments)
	return out
}

// Params lists the path parameter names in order.
func (d *Definition) Params() []string {
	out := make([]string, len(d.params))
	copy(out, d.params)
	return out
}

// Identity is "METHOD /path".
func (d *Definition) Identity() string {
	return d.method + " /" + strings.Join(d.segments, "/")
}

func (d *Definition) Description() string { return d.description }

// QueryKey returns the configured key, or the store default.
func (d *Definition) QueryKey() apistore.QueryKey {
	if d.queryKey != nil {
		return d.queryKey
	}
	return apistore.DefaultQueryKey(d)
}

// RequestData implements apistore.Endpoint.
func (d *Definition) RequestData(requestData, pathParams any) apistore.RequestData {
	path, err := d.resolvePath(pathParams)
	if err != nil {
		return apistore.RequestData{Message: err.Error()}
	}
	if err := validateRequest(requestData); err != nil {
		return apistore.RequestData{Message: err.Error()}
	}

	if d.method == "GET" || d.method == "DELETE" {
		query, err := encodeQuery(requestData)
		if err != nil {
			return apistore.RequestData{Message: err.Error()}
		}
		if query != "" {
			path += "?" + query
		}
		return apistore.RequestData{EndpointURL: path, Success: true}
	}

	var body []byte
	if requestData != nil {
		body, err = json.Marshal(requestData)
		if err != nil {
			return apistore.RequestData{Message: fmt.Sprintf("encode request: %v", err)}
		}
	}
	return apistore.RequestData{EndpointURL: path, PostBody: body, Success: true}
}

func (d *Definition) resolvePath(pathParams any) (string, error) {
	values, err := toMap(pathParams)
	if err != nil {
		return "", fmt.Errorf("path parameters: %w", err)
	}
	var b strings.Builder
	for _, seg := range d.segments {
		b.WriteByte('/')
		name, ok := placeholder(seg)
		if !ok {
			b.WriteString(seg)
			continue
		}
		raw, ok := values[name]
		if !ok || raw == nil {
			return "", fmt.Errorf("missing path parameter %q", name)
		}
		value := formatValue(raw)
		if value == "" {
			return "", fmt.Errorf("empty path parameter %q", name)
		}
		b.WriteString(url.PathEscape(value))
	}
	if b.Len() == 0 {
		return "/", nil
	}
	return b.String(), nil
}

func validateRequest(requestData any) error {
	v := reflect.ValueOf(requestData)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	err := validate.Struct(v.Interface())
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min", "max", "len":
		return fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
	case "email":
		return fe.Field() + " must be an email address"
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

func encodeQuery(requestData any) (string, error) {
	values, err := toMap(requestData)
	if err != nil {
		return "", fmt.Errorf("query parameters: %w", err)
	}
	if len(values) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	q := url.Values{}
	for _, k := range keys {
		switch v := values[k].(type) {
		case nil:
		case []any:
			for _, item := range v {
				q.Add(k, formatValue(item))
			}
		default:
			q.Set(k, formatValue(v))
		}
	}
	return q.Encode(), nil
}

// toMap flattens a struct or map into its JSON object form. Numbers come
// back as json.Number so large integers keep every digit.
func toMap(v any) (map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, errors.New("must be an object")
	}
	return out, nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		if !strings.ContainsAny(val.String(), ".eE") {
			return val.String()
		}
		f, err := val.Float64()
		if err != nil {
			return val.String()
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(raw)
	}
}
