package convert

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/and161185/profilekeeper/internal/model"
	"github.com/and161185/profilekeeper/internal/repository"
	"google.golang.org/protobuf/types/known/structpb"
)

// Wire field names of the gRPC messages.
const (
	KeyEmail       = "email"
	KeyPassword    = "password"
	KeyToken       = "token"
	KeyUserID      = "user_id"
	KeyAccessToken = "access_token"
	KeyExpiresAt   = "expires_at"
	KeyID          = "id"
	KeyFound       = "found"
	KeyDocument    = "document"
	KeyFields      = "fields"
	KeyKey         = "key"
	KeyData        = "data"
	KeyURL         = "url"
)

// --- helpers ---

// Strings builds a message holding only string fields.
func Strings(kv map[string]string) *structpb.Struct {
	m := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(kv))}
	for k, v := range kv {
		m.Fields[k] = structpb.NewStringValue(v)
	}
	return m
}

// Empty is the message used for operations without a payload.
func Empty() *structpb.Struct { return &structpb.Struct{Fields: map[string]*structpb.Value{}} }

// GetString reads a string field; missing or non-string fields read as "".
func GetString(m *structpb.Struct, key string) string {
	return m.GetFields()[key].GetStringValue()
}

// --- documents ---

// ToProtoDocument wraps a stored document.
func ToProtoDocument(doc repository.Document) (*structpb.Struct, error) {
	return structpb.NewStruct(doc)
}

// FromProtoDocument unwraps a document; nil yields an empty document.
func FromProtoDocument(s *structpb.Struct) repository.Document {
	if s == nil {
		return repository.Document{}
	}
	return repository.Document(s.AsMap())
}

// ToProtoGetProfileResponse builds the GetProfile reply.
func ToProtoGetProfileResponse(doc repository.Document, found bool) (*structpb.Struct, error) {
	out := Empty()
	out.Fields[KeyFound] = structpb.NewBoolValue(found)
	if found {
		d, err := ToProtoDocument(doc)
		if err != nil {
			return nil, err
		}
		out.Fields[KeyDocument] = structpb.NewStructValue(d)
	}
	return out, nil
}

// FromProtoGetProfileResponse reads the GetProfile reply.
func FromProtoGetProfileResponse(m *structpb.Struct) (repository.Document, bool) {
	if !m.GetFields()[KeyFound].GetBoolValue() {
		return nil, false
	}
	return FromProtoDocument(m.GetFields()[KeyDocument].GetStructValue()), true
}

// ToProtoDocumentRequest builds SetProfile/UpdateProfile requests; field is KeyDocument or KeyFields.
func ToProtoDocumentRequest(id, field string, doc repository.Document) (*structpb.Struct, error) {
	d, err := ToProtoDocument(doc)
	if err != nil {
		return nil, err
	}
	out := Strings(map[string]string{KeyID: id})
	out.Fields[field] = structpb.NewStructValue(d)
	return out, nil
}

// --- sessions ---

// ToProtoSession builds the Register/SignIn reply.
func ToProtoSession(userID string, t model.Tokens) *structpb.Struct {
	return Strings(map[string]string{
		KeyUserID:      userID,
		KeyAccessToken: t.AccessToken,
		KeyExpiresAt:   t.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// FromProtoSession reads the Register/SignIn reply.
func FromProtoSession(m *structpb.Struct) (string, model.Tokens, error) {
	userID := GetString(m, KeyUserID)
	tok := GetString(m, KeyAccessToken)
	if userID == "" || tok == "" {
		return "", model.Tokens{}, fmt.Errorf("session reply: missing %s/%s", KeyUserID, KeyAccessToken)
	}
	exp, err := time.Parse(time.RFC3339, GetString(m, KeyExpiresAt))
	if err != nil {
		return "", model.Tokens{}, fmt.Errorf("session reply: %s: %w", KeyExpiresAt, err)
	}
	return userID, model.Tokens{AccessToken: tok, ExpiresAt: exp}, nil
}

// --- assets ---

// ToProtoAsset builds a PutAsset request.
func ToProtoAsset(key string, data []byte) *structpb.Struct {
	return Strings(map[string]string{
		KeyKey:  key,
		KeyData: base64.StdEncoding.EncodeToString(data),
	})
}

// FromProtoAsset reads a PutAsset request.
func FromProtoAsset(m *structpb.Struct) (string, []byte, error) {
	data, err := base64.StdEncoding.DecodeString(GetString(m, KeyData))
	if err != nil {
		return "", nil, fmt.Errorf("asset data: %w", err)
	}
	return GetString(m, KeyKey), data, nil
}
