package client

import (
	"context"

	"google.golang.org/grpc"

	"github.com/and161185/profilekeeper/internal/convert"
	"github.com/and161185/profilekeeper/internal/repository"
	"github.com/and161185/profilekeeper/internal/rpc"
)

// Profiles is the remote profile document store.
type Profiles struct{ rpc *rpc.Client }

var _ repository.ProfileStore = (*Profiles)(nil)

// NewProfiles uses cc for calls.
func NewProfiles(cc grpc.ClientConnInterface) *Profiles { return &Profiles{rpc: rpc.NewClient(cc)} }

func (p *Profiles) Get(ctx context.Context, id string) (repository.Document, bool, error) {
	out, err := p.rpc.Call(ctx, rpc.MethodGetProfile, convert.Strings(map[string]string{convert.KeyID: id}))
	if err != nil {
		return nil, false, fromStatus(rpc.MethodGetProfile, err)
	}
	doc, found := convert.FromProtoGetProfileResponse(out)
	return doc, found, nil
}

func (p *Profiles) Set(ctx context.Context, id string, doc repository.Document) error {
	return p.write(ctx, rpc.MethodSetProfile, id, convert.KeyDocument, doc)
}

func (p *Profiles) Update(ctx context.Context, id string, fields repository.Document) error {
	return p.write(ctx, rpc.MethodUpdateProfile, id, convert.KeyFields, fields)
}

func (p *Profiles) write(ctx context.Context, method, id, field string, doc repository.Document) error {
	in, err := convert.ToProtoDocumentRequest(id, field, doc)
	if err != nil {
		return err
	}
	if _, err := p.rpc.Call(ctx, method, in); err != nil {
		return fromStatus(method, err)
	}
	return nil
}

// Assets is the remote blob store.
type Assets struct{ rpc *rpc.Client }

var _ repository.AssetStore = (*Assets)(nil)

// NewAssets uses cc for calls.
func NewAssets(cc grpc.ClientConnInterface) *Assets { return &Assets{rpc: rpc.NewClient(cc)} }

func (a *Assets) Put(ctx context.Context, key string, data []byte) (string, error) {
	out, err := a.rpc.Call(ctx, rpc.MethodPutAsset, convert.ToProtoAsset(key, data))
	if err != nil {
		return "", fromStatus(rpc.MethodPutAsset, err)
	}
	return convert.GetString(out, convert.KeyURL), nil
}
