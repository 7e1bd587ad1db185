// request.go defines the request capability interfaces and builds the
// request section of an item from them.

package rollnotify

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"reflect"
	"strings"
)

// Request is the narrow view of an incoming request that the notifier needs.
// Frameworks adapt their request types into it; FromHTTPRequest covers net/http.
type Request interface {
	Method() string
	URL() *url.URL
	Host() string
	Secure() bool
	Header() http.Header
	// Body returns parsed body parameters (a map, url.Values or a decoded
	// struct), the raw body as a string, or nil.
	Body() any
	RemoteAddr() string
}

// IPProvider supplies a client IP already resolved by the framework.
type IPProvider interface {
	IP() string
}

// RouteProvider supplies the matched route pattern, used as the item context.
type RouteProvider interface {
	Route() string
}

// PersonProvider supplies an explicitly attached person.
type PersonProvider interface {
	Person() *Person
}

// UserProvider supplies an authenticated user.
type UserProvider interface {
	User() *User
}

// UserIDProvider supplies a bare user id. The value may be a func() string or
// func() any, which is called to obtain the id.
type UserIDProvider interface {
	UserID() any
}

// User is an authenticated user as exposed by a framework.
type User struct {
	ID       any
	Username string
	Email    string
}

// RequestOption configures the adapter returned by FromHTTPRequest.
type RequestOption func(*httpRequest)

// WithRequestRoute sets the matched route pattern.
func WithRequestRoute(route string) RequestOption {
	return func(r *httpRequest) { r.route = route }
}

// WithRequestPerson attaches an explicit person.
func WithRequestPerson(p *Person) RequestOption {
	return func(r *httpRequest) { r.person = p }
}

// WithRequestUser attaches an authenticated user.
func WithRequestUser(u *User) RequestOption {
	return func(r *httpRequest) { r.user = u }
}

// WithRequestUserID attaches a bare user id or id accessor.
func WithRequestUserID(id any) RequestOption {
	return func(r *httpRequest) { r.userID = id }
}

// WithRequestBody sets the parsed body. Without it the adapter uses
// PostForm when the handler already parsed the form.
func WithRequestBody(body any) RequestOption {
	return func(r *httpRequest) { r.body = body }
}

type httpRequest struct {
	r      *http.Request
	route  string
	person *Person
	user   *User
	userID any
	body   any
}

// FromHTTPRequest adapts a *http.Request. It never reads r.Body.
func FromHTTPRequest(r *http.Request, opts ...RequestOption) Request {
	if r == nil {
		return nil
	}
	hr := &httpRequest{r: r}
	for _, opt := range opts {
		opt(hr)
	}
	return hr
}

func (h *httpRequest) Method() string      { return h.r.Method }
func (h *httpRequest) URL() *url.URL       { return h.r.URL }
func (h *httpRequest) Host() string        { return h.r.Host }
func (h *httpRequest) Secure() bool        { return h.r.TLS != nil }
func (h *httpRequest) Header() http.Header { return h.r.Header }
func (h *httpRequest) RemoteAddr() string  { return h.r.RemoteAddr }
func (h *httpRequest) Route() string       { return h.route }
func (h *httpRequest) Person() *Person     { return h.person }
func (h *httpRequest) User() *User         { return h.user }
func (h *httpRequest) UserID() any         { return h.userID }

func (h *httpRequest) Body() any {
	if h.body != nil {
		return h.body
	}
	if h.r.PostForm != nil {
		return h.r.PostForm
	}
	return nil
}

// BuildRequestData builds the scrubbed request section. Missing pieces of req
// leave the matching fields empty.
func BuildRequestData(req Request, scrubber *Scrubber) *RequestData {
	if req == nil {
		return nil
	}
	if scrubber == nil {
		scrubber = NewScrubber(DefaultScrubberConfig())
	}

	headers := flattenHeader(req.Header())
	data := &RequestData{
		Method:  req.Method(),
		Headers: scrubber.ScrubHeaders(headers),
		UserIP:  ExtractIP(req),
	}

	host := headerValue(headers, "Host")
	if host == "" {
		host = req.Host()
	}
	if host == "" {
		host = "<no host>"
	}
	proto := "http"
	if req.Secure() || strings.EqualFold(headerValue(headers, "X-Forwarded-Proto"), "https") {
		proto = "https"
	}

	if u := req.URL(); u != nil {
		data.URL = proto + "://" + host + u.RequestURI()
		if q := u.Query(); len(q) > 0 {
			data.GET = scrubber.ScrubParams(valuesToParams(q))
		}
	}

	switch body := req.Body().(type) {
	case nil:
	case string:
		data.Body = body
	case []byte:
		data.Body = string(body)
	default:
		if params, ok := bodyParams(body); ok {
			data.Params = scrubber.ScrubParams(params)
		} else {
			data.Body = fmt.Sprint(body)
		}
	}
	return data
}

// ExtractIP returns the client IP. The order is an IPProvider, X-Real-Ip,
// the first X-Forwarded-For entry, then the host part of RemoteAddr.
func ExtractIP(req Request) string {
	if req == nil {
		return ""
	}
	if p, ok := req.(IPProvider); ok {
		if ip := p.IP(); ip != "" {
			return ip
		}
	}
	if h := req.Header(); h != nil {
		if ip := strings.TrimSpace(h.Get("X-Real-Ip")); ip != "" {
			return ip
		}
		if fwd := h.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	addr := req.RemoteAddr()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// resolvePerson picks the person by priority: explicit person, then user,
// then bare user id.
func resolvePerson(req Request) *Person {
	if req == nil {
		return nil
	}
	if p, ok := req.(PersonProvider); ok {
		if person := p.Person(); person != nil {
			return person
		}
	}
	if u, ok := req.(UserProvider); ok {
		if user := u.User(); user != nil && user.ID != nil {
			return &Person{ID: fmt.Sprint(user.ID), Username: user.Username, Email: user.Email}
		}
	}
	if u, ok := req.(UserIDProvider); ok {
		id := u.UserID()
		switch fn := id.(type) {
		case func() string:
			id = fn()
		case func() any:
			id = fn()
		}
		if id != nil {
			if s := fmt.Sprint(id); s != "" {
				return &Person{ID: s}
			}
		}
	}
	return nil
}

func routeOf(req Request) string {
	if r, ok := req.(RouteProvider); ok {
		return r.Route()
	}
	return ""
}

func flattenHeader(h http.Header) map[string]string {
	if h == nil {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = strings.Join(v, ", ")
	}
	return out
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// bodyParams converts a structured body into parameters so that every key
// passes through the scrubber. Maps are copied key by key; structs and other
// composite values go through their JSON form. Scalars report false; a nil
// pointer yields no parameters.
func bodyParams(body any) (map[string]any, bool) {
	switch b := body.(type) {
	case url.Values:
		return valuesToParams(b), true
	case map[string]any:
		return b, true
	}

	v := reflect.ValueOf(body)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, true
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		params := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			params[fmt.Sprint(iter.Key().Interface())] = iter.Value().Interface()
		}
		return params, true
	case reflect.Struct, reflect.Slice, reflect.Array:
		raw, err := json.Marshal(v.Interface())
		if err != nil {
			return map[string]any{}, true
		}
		var params map[string]any
		if err := json.Unmarshal(raw, &params); err != nil {
			// A list body has no keys to scrub by.
			return map[string]any{"body": string(raw)}, true
		}
		return params, true
	}
	return nil, false
}

func valuesToParams(v url.Values) map[string]any {
	out := make(map[string]any, len(v))
	for k, vals := range v {
		if len(vals) == 1 {
			out[k] = vals[0]
			continue
		}
		out[k] = append([]string{}, vals...)
	}
	return out
}
