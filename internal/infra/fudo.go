package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ── FUDO POS client ───────────────────────────────────────────────────────────
// JSON:API client for the point-of-sale. Every call (auth included) goes
// through the circuit breaker; the bearer token lives in an explicit
// TokenCache owned by the client.

const (
	tokenSkew       = 60 * time.Second
	defaultTokenTTL = 24 * time.Hour
	maxPages        = 200
)

// HTTPStatusError is returned for any non-2xx answer from the POS.
type HTTPStatusError struct {
	Status int
	Body   string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("fudo: status %d: %s", e.Status, e.Body)
}

// IsPOSFailure is the breaker predicate: transport errors, 5xx and 429 count,
// rejections of our own request (4xx) do not.
func IsPOSFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var se *HTTPStatusError
	if errors.As(err, &se) {
		return se.Status >= 500 || se.Status == http.StatusTooManyRequests
	}
	return true
}

// FudoConfig bundles the connection parameters.
type FudoConfig struct {
	AuthURL    string
	BaseURL    string
	APIKey     string
	APISecret  string
	Timeout    time.Duration
	PageSize   int
	MethodID   string // payment method attached to reconciling transactions
	RegisterID string // cash register attached to reconciling transactions
}

// ── Domain views of POS resources ─────────────────────────────────────────────

type PagoPOS struct {
	ID           string
	Monto        decimal.Decimal
	Cancelado    bool
	MetodoID     string
	MetodoCodigo string
	MetodoNombre string
}

type VentaPOS struct {
	ID        string
	ClienteID string
	Fecha     time.Time
	Estado    string
	Pagos     []PagoPOS
}

// TransaccionPOS is a house-account entry; positive amounts are credits.
type TransaccionPOS struct {
	ID         string
	Monto      decimal.Decimal
	Comentario string
	Fecha      time.Time
}

type MovimientoCajaPOS struct {
	ID         string
	Monto      decimal.Decimal
	Direccion  string // "in" | "out"
	Comentario string
	Fecha      time.Time
}

// EsEgreso reports whether cash left the register.
func (m MovimientoCajaPOS) EsEgreso() bool {
	return strings.EqualFold(m.Direccion, "out") || m.Monto.IsNegative()
}

type TransaccionPOSRequest struct {
	CustomerID string
	Monto      decimal.Decimal
	Comentario string
}

// ── JSON:API wire documents ───────────────────────────────────────────────────

type jsonRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type jsonRel struct {
	Data json.RawMessage `json:"data"`
}

type jsonResource struct {
	ID            string             `json:"id"`
	Type          string             `json:"type"`
	Attributes    json.RawMessage    `json:"attributes"`
	Relationships map[string]jsonRel `json:"relationships,omitempty"`
}

type jsonListDoc struct {
	Data     []jsonResource `json:"data"`
	Included []jsonResource `json:"included"`
}

type jsonSingleDoc struct {
	Data jsonResource `json:"data"`
}

type saleAttrs struct {
	CreatedAt time.Time `json:"createdAt"`
	SaleState string    `json:"saleState"`
}

type paymentAttrs struct {
	Amount   decimal.Decimal `json:"amount"`
	Canceled bool            `json:"canceled"`
}

type paymentMethodAttrs struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type entryAttrs struct {
	Amount    decimal.Decimal `json:"amount"`
	Comment   string          `json:"comment"`
	Direction string          `json:"direction"`
	CreatedAt time.Time       `json:"createdAt"`
}

type customerAttrs struct {
	HouseAccountBalance decimal.Decimal `json:"houseAccountBalance"`
}

func (r jsonResource) one(name string) (jsonRef, bool) {
	rel, ok := r.Relationships[name]
	if !ok || len(rel.Data) == 0 || string(rel.Data) == "null" {
		return jsonRef{}, false
	}
	var ref jsonRef
	if err := json.Unmarshal(rel.Data, &ref); err != nil {
		return jsonRef{}, false
	}
	return ref, true
}

func (r jsonResource) many(name string) []jsonRef {
	rel, ok := r.Relationships[name]
	if !ok {
		return nil
	}
	var refs []jsonRef
	_ = json.Unmarshal(rel.Data, &refs)
	return refs
}

// ── Client ────────────────────────────────────────────────────────────────────

type FudoClient struct {
	cfg        FudoConfig
	httpClient *http.Client
	cb         *CircuitBreaker
	tokens     TokenCache
	now        func() time.Time
}

func NewFudoClient(cfg FudoConfig, cb *CircuitBreaker, tokens TokenCache) *FudoClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	if tokens == nil {
		tokens = NewMemoryTokenCache()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &FudoClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cb:         cb,
		tokens:     tokens,
		now:        time.Now,
	}
}

// Breaker exposes the breaker so health endpoints can report its state.
func (c *FudoClient) Breaker() *CircuitBreaker { return c.cb }

// ListarVentas returns every sale billed to the customer, with payments and
// their payment methods resolved from the included section.
func (c *FudoClient) ListarVentas(ctx context.Context, customerID string) ([]VentaPOS, error) {
	q := url.Values{}
	q.Set("filter[customer]", customerID)
	q.Set("include", "payments.paymentMethod")

	var ventas []VentaPOS
	err := c.paginate(ctx, "/sales", q, func(doc jsonListDoc) error {
		incl := make(map[string]jsonResource, len(doc.Included))
		for _, r := range doc.Included {
			incl[r.Type+":"+r.ID] = r
		}
		for _, r := range doc.Data {
			var a saleAttrs
			if err := json.Unmarshal(r.Attributes, &a); err != nil {
				return fmt.Errorf("fudo: decode sale %s: %w", r.ID, err)
			}
			v := VentaPOS{ID: r.ID, ClienteID: customerID, Fecha: a.CreatedAt, Estado: a.SaleState}
			if ref, ok := r.one("customer"); ok {
				v.ClienteID = ref.ID
			}
			for _, pref := range r.many("payments") {
				pr, ok := incl["Payment:"+pref.ID]
				if !ok {
					continue
				}
				var pa paymentAttrs
				if err := json.Unmarshal(pr.Attributes, &pa); err != nil {
					return fmt.Errorf("fudo: decode payment %s: %w", pr.ID, err)
				}
				pago := PagoPOS{ID: pr.ID, Monto: pa.Amount, Cancelado: pa.Canceled}
				if mref, ok := pr.one("paymentMethod"); ok {
					pago.MetodoID = mref.ID
					if mr, ok := incl["PaymentMethod:"+mref.ID]; ok {
						var ma paymentMethodAttrs
						_ = json.Unmarshal(mr.Attributes, &ma)
						pago.MetodoCodigo, pago.MetodoNombre = ma.Code, ma.Name
					}
				}
				v.Pagos = append(v.Pagos, pago)
			}
			ventas = append(ventas, v)
		}
		return nil
	})
	return ventas, err
}

// ListarTransacciones returns the customer's house-account entries.
func (c *FudoClient) ListarTransacciones(ctx context.Context, customerID string) ([]TransaccionPOS, error) {
	q := url.Values{}
	q.Set("filter[customer]", customerID)

	var out []TransaccionPOS
	err := c.paginate(ctx, "/house-account-transactions", q, func(doc jsonListDoc) error {
		for _, r := range doc.Data {
			var a entryAttrs
			if err := json.Unmarshal(r.Attributes, &a); err != nil {
				return fmt.Errorf("fudo: decode transaction %s: %w", r.ID, err)
			}
			out = append(out, TransaccionPOS{ID: r.ID, Monto: a.Amount, Comentario: a.Comment, Fecha: a.CreatedAt})
		}
		return nil
	})
	return out, err
}

// ListarMovimientosCaja returns cash-register movements created in [desde, hasta].
func (c *FudoClient) ListarMovimientosCaja(ctx context.Context, desde, hasta time.Time) ([]MovimientoCajaPOS, error) {
	q := url.Values{}
	q.Set("filter[createdAt][gte]", desde.UTC().Format(time.RFC3339))
	q.Set("filter[createdAt][lte]", hasta.UTC().Format(time.RFC3339))

	var out []MovimientoCajaPOS
	err := c.paginate(ctx, "/cash-movements", q, func(doc jsonListDoc) error {
		for _, r := range doc.Data {
			var a entryAttrs
			if err := json.Unmarshal(r.Attributes, &a); err != nil {
				return fmt.Errorf("fudo: decode cash movement %s: %w", r.ID, err)
			}
			out = append(out, MovimientoCajaPOS{
				ID: r.ID, Monto: a.Amount, Direccion: a.Direction,
				Comentario: a.Comment, Fecha: a.CreatedAt,
			})
		}
		return nil
	})
	return out, err
}

// CrearTransaccion posts a credit to the customer's house account and
// returns the POS id of the new entry.
func (c *FudoClient) CrearTransaccion(ctx context.Context, req TransaccionPOSRequest) (string, error) {
	rels := map[string]any{
		"customer": map[string]any{"data": jsonRef{ID: req.CustomerID, Type: "Customer"}},
	}
	if c.cfg.MethodID != "" {
		rels["paymentMethod"] = map[string]any{"data": jsonRef{ID: c.cfg.MethodID, Type: "PaymentMethod"}}
	}
	if c.cfg.RegisterID != "" {
		rels["cashRegister"] = map[string]any{"data": jsonRef{ID: c.cfg.RegisterID, Type: "CashRegister"}}
	}
	body := map[string]any{
		"data": map[string]any{
			"type": "HouseAccountTransaction",
			"attributes": map[string]any{
				"amount":  req.Monto,
				"comment": req.Comentario,
			},
			"relationships": rels,
		},
	}
	var doc jsonSingleDoc
	if err := c.call(ctx, http.MethodPost, "/house-account-transactions", nil, body, &doc); err != nil {
		return "", err
	}
	if doc.Data.ID == "" {
		return "", errors.New("fudo: transaction created without id")
	}
	return doc.Data.ID, nil
}

// SaldoCuenta returns the customer's current house-account balance.
func (c *FudoClient) SaldoCuenta(ctx context.Context, customerID string) (decimal.Decimal, error) {
	var doc jsonSingleDoc
	if err := c.call(ctx, http.MethodGet, "/customers/"+url.PathEscape(customerID), nil, nil, &doc); err != nil {
		return decimal.Zero, err
	}
	var a customerAttrs
	if len(doc.Data.Attributes) > 0 {
		if err := json.Unmarshal(doc.Data.Attributes, &a); err != nil {
			return decimal.Zero, fmt.Errorf("fudo: decode customer: %w", err)
		}
	}
	return a.HouseAccountBalance, nil
}

// ── Plumbing ──────────────────────────────────────────────────────────────────

func (c *FudoClient) paginate(ctx context.Context, path string, q url.Values, page func(jsonListDoc) error) error {
	for n := 1; n <= maxPages; n++ {
		pq := url.Values{}
		for k, v := range q {
			pq[k] = v
		}
		pq.Set("page[size]", fmt.Sprint(c.cfg.PageSize))
		pq.Set("page[number]", fmt.Sprint(n))

		var doc jsonListDoc
		if err := c.call(ctx, http.MethodGet, path, pq, nil, &doc); err != nil {
			return err
		}
		if err := page(doc); err != nil {
			return err
		}
		if len(doc.Data) < c.cfg.PageSize {
			return nil
		}
	}
	log.Warn().Str("path", path).Int("pages", maxPages).Msg("fudo: page limit reached, result truncated")
	return nil
}

func (c *FudoClient) call(ctx context.Context, method, path string, q url.Values, body, out any) error {
	return c.cb.Execute(func() error {
		err := c.send(ctx, method, path, q, body, out)
		var se *HTTPStatusError
		if errors.As(err, &se) && se.Status == http.StatusUnauthorized {
			// Token revoked or expired early: drop it and retry once.
			_ = c.tokens.Invalidate(ctx)
			err = c.send(ctx, method, path, q, body, out)
		}
		return err
	})
}

func (c *FudoClient) send(ctx context.Context, method, path string, q url.Values, body, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	u := c.cfg.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("fudo: marshal body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return fmt.Errorf("fudo: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *FudoClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return fmt.Errorf("fudo: timeout: %w", err)
		}
		return fmt.Errorf("fudo: unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPStatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("fudo: decode response: %w", err)
	}
	return nil
}

// token returns a cached bearer token or exchanges the API credentials for one.
func (c *FudoClient) token(ctx context.Context) (string, error) {
	now := c.now()
	if tok, ok, err := c.tokens.Get(ctx); err == nil && ok && tok.Valid(now, tokenSkew) {
		return tok.Value, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("fudo: token cache unavailable, requesting a new token")
	}

	b, _ := json.Marshal(map[string]string{"apiKey": c.cfg.APIKey, "apiSecret": c.cfg.APISecret})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL, bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("fudo: create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var res struct {
		Token string `json:"token"`
		Exp   int64  `json:"exp"`
	}
	if err := c.do(req, &res); err != nil {
		return "", fmt.Errorf("fudo: auth: %w", err)
	}
	if res.Token == "" {
		return "", errors.New("fudo: auth response without token")
	}
	tok := POSToken{Value: res.Token, Expiry: now.Add(defaultTokenTTL)}
	if res.Exp > 0 {
		tok.Expiry = time.Unix(res.Exp, 0)
	}
	if err := c.tokens.Set(ctx, tok); err != nil {
		log.Warn().Err(err).Msg("fudo: could not cache token")
	}
	return tok.Value, nil
}
