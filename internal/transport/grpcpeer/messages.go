package grpcpeer

import (
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/moments/internal/transport"
)

// The relay speaks protobuf well-known types on the wire: emptypb.Empty,
// wrapperspb.StringValue for single peer ids and metadata values, and
// structpb for the composite requests and events below. Payloads are the
// UTF-8 JSON envelopes produced by the protocol package.

type SendRequest struct {
	To      string
	Payload []byte
}

type FriendRequest struct {
	To      string
	Summary string
}

type SetMetaRequest struct {
	Peer  string
	Value string
}

// Event kinds streamed by Subscribe.
const (
	KindPresence      = "presence"
	KindFriendRequest = "friendRequest"
	KindMessage       = "message"
	KindInfoChanged   = "infoChanged"
)

// Event is one item of the Subscribe stream.
type Event struct {
	ID      string
	Kind    string
	Peer    string
	Online  bool
	Summary string
	Payload []byte
}

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func (r *SendRequest) toProto() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"to":      structpb.NewStringValue(r.To),
		"payload": structpb.NewStringValue(string(r.Payload)),
	}}
}

func sendRequestFromProto(s *structpb.Struct) *SendRequest {
	return &SendRequest{To: stringField(s, "to"), Payload: []byte(stringField(s, "payload"))}
}

func (r *FriendRequest) toProto() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"to":      structpb.NewStringValue(r.To),
		"summary": structpb.NewStringValue(r.Summary),
	}}
}

func friendRequestFromProto(s *structpb.Struct) *FriendRequest {
	return &FriendRequest{To: stringField(s, "to"), Summary: stringField(s, "summary")}
}

func (r *SetMetaRequest) toProto() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"peer":  structpb.NewStringValue(r.Peer),
		"value": structpb.NewStringValue(r.Value),
	}}
}

func setMetaRequestFromProto(s *structpb.Struct) *SetMetaRequest {
	return &SetMetaRequest{Peer: stringField(s, "peer"), Value: stringField(s, "value")}
}

func peersToProto(peers []transport.Peer) *structpb.ListValue {
	list := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(peers))}
	for _, p := range peers {
		list.Values = append(list.Values, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"id":     structpb.NewStringValue(p.ID),
			"online": structpb.NewBoolValue(p.Online),
		}}))
	}
	return list
}

func peersFromProto(list *structpb.ListValue) []transport.Peer {
	peers := make([]transport.Peer, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		s := v.GetStructValue()
		peers = append(peers, transport.Peer{
			ID:     stringField(s, "id"),
			Online: s.GetFields()["online"].GetBoolValue(),
		})
	}
	return peers
}

func (e *Event) toProto() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":      structpb.NewStringValue(e.ID),
		"kind":    structpb.NewStringValue(e.Kind),
		"peer":    structpb.NewStringValue(e.Peer),
		"online":  structpb.NewBoolValue(e.Online),
		"summary": structpb.NewStringValue(e.Summary),
		"payload": structpb.NewStringValue(string(e.Payload)),
	}}
}

func eventFromProto(s *structpb.Struct) *Event {
	ev := &Event{
		ID:      stringField(s, "id"),
		Kind:    stringField(s, "kind"),
		Peer:    stringField(s, "peer"),
		Online:  s.GetFields()["online"].GetBoolValue(),
		Summary: stringField(s, "summary"),
	}
	if p := stringField(s, "payload"); p != "" {
		ev.Payload = []byte(p)
	}
	return ev
}
