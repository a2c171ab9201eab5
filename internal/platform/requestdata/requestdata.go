package requestdata

import (
	"context"

	"github.com/google/uuid"
)

type requestDataKey struct{}

// RequestData carries the authenticated caller and the tenant resolved by
// middleware. Services receive it explicitly or read it from the context;
// there is no mutable global tenant state.
type RequestData struct {
	UserID    uuid.UUID
	UserEmail string
	UserName  string
	Role      string
	Tenant    string
}

func (rd *RequestData) IsAdmin() bool {
	if rd == nil {
		return false
	}
	return rd.Role == "tenant_admin" || rd.Role == "super_admin"
}

func With(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func Get(ctx context.Context) *RequestData {
	if ctx == nil {
		return nil
	}
	rd, ok := ctx.Value(requestDataKey{}).(*RequestData)
	if !ok {
		return nil
	}
	return rd
}
