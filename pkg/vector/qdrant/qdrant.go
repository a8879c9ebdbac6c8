// Package qdrant provides a vector store backed by a Qdrant collection.
//
// Each owner is one point whose ID is derived from the owner ID. The owner's
// fields are the point payload and its vectors are named vectors, one per
// tag, so an owner can exist before any of its vectors.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/callctx/pkg/embeddings"
	"github.com/papercomputeco/callctx/pkg/vector"
)

const (
	// DefaultCollectionName is the collection owners are stored in.
	DefaultCollectionName = "callctx_owners"

	// DefaultPort is Qdrant's gRPC port.
	DefaultPort = 6334

	fieldOwnerID   = "owner_id"
	fieldScope     = "scope"
	fieldText      = "text"
	fieldSummary   = "summary"
	fieldCreatedAt = "created_at"
)

// ownerNamespace seeds the name-based UUIDs used as point IDs.
var ownerNamespace = uuid.MustParse("6f1c2f8e-4b7a-5d2e-9c61-0d3f4a5b6c7d")

// Config holds configuration for the Qdrant store.
type Config struct {
	// Target is the Qdrant gRPC address, e.g. "qdrant://localhost:6334" or
	// "localhost:6334".
	Target string

	// APIKey authenticates against Qdrant Cloud.
	APIKey string

	// CollectionName defaults to DefaultCollectionName.
	CollectionName string

	// Dimensions is the size of every named vector. Required.
	Dimensions uint64
}

// Driver implements vector.Store on Qdrant.
type Driver struct {
	client     *qdrant.Client
	collection string
	logger     *slog.Logger
}

// NewDriver connects to Qdrant and ensures the collection exists.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if c.Dimensions == 0 {
		return nil, errors.New("qdrant embedding dimensions cannot be 0, must be configured")
	}

	host, port, useTLS, err := ParseTarget(c.Target)
	if err != nil {
		return nil, err
	}

	collection := c.CollectionName
	if collection == "" {
		collection = DefaultCollectionName
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrConnection, err)
	}

	d := &Driver{client: client, collection: collection, logger: logger}
	if err := d.ensureCollection(ctx, c.Dimensions); err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("connected to Qdrant",
		"host", host,
		"port", port,
		"collection", collection,
	)
	return d, nil
}

// ParseTarget splits a Qdrant target into host, port and TLS flag.
func ParseTarget(target string) (string, int, bool, error) {
	if target == "" {
		return "", 0, false, errors.New("qdrant target is required")
	}

	useTLS := false
	hostport := target
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		hostport = u.Host
		useTLS = u.Scheme == "https" || u.Scheme == "qdrants"
	}

	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport, DefaultPort, useTLS, nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, false, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
	}
	return host, port, useTLS, nil
}

// PointID returns the point ID under which ownerID is stored.
func PointID(ownerID string) string {
	return uuid.NewSHA1(ownerNamespace, []byte(ownerID)).String()
}

func (d *Driver) ensureCollection(ctx context.Context, dims uint64) error {
	exists, err := d.client.CollectionExists(ctx, d.collection)
	if err != nil {
		return fmt.Errorf("%w: checking collection %s: %w", vector.ErrConnection, d.collection, err)
	}
	if exists {
		return nil
	}

	// Ranking happens in the retriever. Dot distance stores vectors unmodified,
	// where Cosine would normalize them on write.
	params := make(map[string]*qdrant.VectorParams, len(vector.Tags))
	for _, tag := range vector.Tags {
		params[string(tag)] = &qdrant.VectorParams{
			Size:     dims,
			Distance: qdrant.Distance_Dot,
		}
	}

	if err := d.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: d.collection,
		VectorsConfig:  qdrant.NewVectorsConfigMap(params),
	}); err != nil {
		return fmt.Errorf("creating collection %s: %w", d.collection, err)
	}

	// Scroll ordering and scope filtering need payload indexes.
	indexes := map[string]qdrant.FieldType{
		fieldScope:     qdrant.FieldType_FieldTypeKeyword,
		fieldCreatedAt: qdrant.FieldType_FieldTypeInteger,
	}
	for field, typ := range indexes {
		if _, err := d.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: d.collection,
			FieldName:      field,
			FieldType:      typ.Enum(),
			Wait:           qdrant.PtrOf(true),
		}); err != nil {
			return fmt.Errorf("creating %s index: %w", field, err)
		}
	}

	d.logger.Info("created Qdrant collection", "collection", d.collection, "dimensions", dims)
	return nil
}

func (d *Driver) PutOwner(ctx context.Context, owner vector.Owner) error {
	if owner.ID == "" {
		return errors.New("owner ID is required")
	}

	id := qdrant.NewID(PointID(owner.ID))
	payload := qdrant.NewValueMap(map[string]any{
		fieldOwnerID:   owner.ID,
		fieldScope:     owner.Scope,
		fieldText:      owner.Text,
		fieldSummary:   owner.Summary,
		fieldCreatedAt: owner.CreatedAt.UnixMilli(),
	})

	existing, err := d.get(ctx, owner.ID, false)
	if err != nil {
		return err
	}

	if existing != nil {
		// Overwrite the payload only; vectors stay.
		if _, err := d.client.OverwritePayload(ctx, &qdrant.SetPayloadPoints{
			CollectionName: d.collection,
			Wait:           qdrant.PtrOf(true),
			Payload:        payload,
			PointsSelector: qdrant.NewPointsSelector(id),
		}); err != nil {
			return fmt.Errorf("updating owner %s: %w", owner.ID, err)
		}
		return nil
	}

	if _, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      id,
			Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{}),
			Payload: payload,
		}},
	}); err != nil {
		return fmt.Errorf("storing owner %s: %w", owner.ID, err)
	}
	return nil
}

func (d *Driver) StoreVector(ctx context.Context, ownerID string, vec embeddings.Vector, tag vector.Tag) error {
	if !tag.Valid() {
		return fmt.Errorf("%w: %q", vector.ErrInvalidTag, tag)
	}

	existing, err := d.get(ctx, ownerID, false)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("%w: owner %s", vector.ErrNotFound, ownerID)
	}

	if _, err := d.client.UpdateVectors(ctx, &qdrant.UpdatePointVectors{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointVectors{{
			Id: qdrant.NewID(PointID(ownerID)),
			Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
				string(tag): qdrant.NewVector(vec...),
			}),
		}},
	}); err != nil {
		return fmt.Errorf("storing %s vector for %s: %w", tag, ownerID, err)
	}
	return nil
}

func (d *Driver) FetchVector(ctx context.Context, ownerID string, tag vector.Tag) (embeddings.Vector, error) {
	if !tag.Valid() {
		return nil, fmt.Errorf("%w: %q", vector.ErrInvalidTag, tag)
	}

	p, err := d.get(ctx, ownerID, true)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: owner %s", vector.ErrNotFound, ownerID)
	}

	v := namedVector(p, tag)
	if v == nil {
		return nil, fmt.Errorf("%w: owner %s tag %s", vector.ErrNotFound, ownerID, tag)
	}
	return v, nil
}

func (d *Driver) FetchCandidates(ctx context.Context, scope string, tag vector.Tag, limit int) ([]vector.Candidate, error) {
	if !tag.Valid() {
		return nil, fmt.Errorf("%w: %q", vector.ErrInvalidTag, tag)
	}

	req := &qdrant.ScrollPoints{
		CollectionName: d.collection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(fieldScope, scope)},
		},
		OrderBy: &qdrant.OrderBy{
			Key:       fieldCreatedAt,
			Direction: qdrant.Direction_Desc.Enum(),
		},
		WithPayload: qdrant.NewWithPayload(true),
		WithVectors: qdrant.NewWithVectorsInclude(string(tag)),
	}
	if limit > 0 {
		req.Limit = qdrant.PtrOf(uint32(limit))
	}

	points, err := d.client.Scroll(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetching candidates for %s: %w", scope, err)
	}

	out := make([]vector.Candidate, 0, len(points))
	for _, p := range points {
		out = append(out, vector.Candidate{
			Owner:  ownerFromPayload(p.GetPayload()),
			Vector: namedVector(p, tag),
		})
	}
	return out, nil
}

func (d *Driver) Close() error {
	return d.client.Close()
}

// get returns the owner's point, or nil when it does not exist.
func (d *Driver) get(ctx context.Context, ownerID string, withVectors bool) (*qdrant.RetrievedPoint, error) {
	points, err := d.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: d.collection,
		Ids:            []*qdrant.PointId{qdrant.NewID(PointID(ownerID))},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(withVectors),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching owner %s: %w", ownerID, err)
	}
	if len(points) == 0 {
		return nil, nil
	}
	return points[0], nil
}

func namedVector(p *qdrant.RetrievedPoint, tag vector.Tag) embeddings.Vector {
	named := p.GetVectors().GetVectors().GetVectors()
	out, ok := named[string(tag)]
	if !ok {
		return nil
	}
	data := out.GetData()
	if len(data) == 0 {
		return nil
	}
	return embeddings.Vector(data)
}

func ownerFromPayload(payload map[string]*qdrant.Value) vector.Owner {
	return vector.Owner{
		ID:        payload[fieldOwnerID].GetStringValue(),
		Scope:     payload[fieldScope].GetStringValue(),
		Text:      payload[fieldText].GetStringValue(),
		Summary:   payload[fieldSummary].GetStringValue(),
		CreatedAt: time.UnixMilli(payload[fieldCreatedAt].GetIntegerValue()).UTC(),
	}
}
