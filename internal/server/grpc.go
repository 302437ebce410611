package server

import (
	"context"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/match"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/state"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "opentcg.match.v1.MatchService"

// MatchService is the match application service the gRPC layer calls into.
type MatchService interface {
	CreateMatch(ctx context.Context, player1ID, player2ID string, deck1, deck2 []string) (*match.Match, error)
	Get(ctx context.Context, matchID string) (*match.Match, error)
	Submit(ctx context.Context, matchID, playerID, actionType string, data map[string]any) (*match.Match, state.ActionSummary, error)
	AvailableActions(ctx context.Context, matchID, playerID string) ([]state.ActionType, error)
	Verify(ctx context.Context, matchID string) (string, error)
	StepReplay(ctx context.Context, matchID string, from int, move match.ReplayMove, count int) (*match.ReplayFrame, error)
}

// MatchServer implements the match RPCs. Requests and responses are
// structpb.Struct documents with camelCase keys.
type MatchServer struct {
	service MatchService
	logger  *zap.Logger
}

// NewMatchServer creates a server on top of service.
func NewMatchServer(service MatchService, logger *zap.Logger) *MatchServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchServer{service: service, logger: logger}
}

// RegisterMatchServer registers srv on a gRPC server.
func RegisterMatchServer(s grpc.ServiceRegistrar, srv *MatchServer) {
	s.RegisterService(&MatchServiceDesc, srv)
}

type unaryMethod func(*MatchServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func handler(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*MatchServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// MatchServiceDesc describes the match service for grpc.Server.
var MatchServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		handler("CreateMatch", (*MatchServer).CreateMatch),
		handler("GetMatch", (*MatchServer).GetMatch),
		handler("SubmitAction", (*MatchServer).SubmitAction),
		handler("AvailableActions", (*MatchServer).AvailableActions),
		handler("VerifyMatch", (*MatchServer).VerifyMatch),
		handler("StepReplay", (*MatchServer).StepReplay),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "opentcg/match/v1/match.proto",
}

// ==================== Match Lifecycle Methods ====================

// CreateMatch validates both decks and deals a new match.
func (s *MatchServer) CreateMatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	player1, err := requiredString(req, "player1Id")
	if err != nil {
		return nil, err
	}
	player2, err := requiredString(req, "player2Id")
	if err != nil {
		return nil, err
	}
	if player1 == player2 {
		return nil, status.Errorf(codes.InvalidArgument, "players must differ: %s", player1)
	}
	deck1 := stringList(req, "deck1")
	deck2 := stringList(req, "deck2")

	m, err := s.service.CreateMatch(ctx, player1, player2, deck1, deck2)
	if err != nil {
		return nil, s.toStatus(ctx, "create match", err)
	}

	s.logger.Info("match created over grpc",
		zap.String("match_id", m.ID),
		zap.String("host", extractHostFromContext(ctx)),
	)
	return toStruct(map[string]any{"match": newMatchView(m)})
}

// GetMatch returns the current match view.
func (s *MatchServer) GetMatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	matchID, err := requiredString(req, "matchId")
	if err != nil {
		return nil, err
	}
	m, err := s.service.Get(ctx, matchID)
	if err != nil {
		return nil, s.toStatus(ctx, "get match", err)
	}
	return toStruct(map[string]any{"match": newMatchView(m)})
}

// VerifyMatch replays the recorded history and returns the final checksum.
func (s *MatchServer) VerifyMatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	matchID, err := requiredString(req, "matchId")
	if err != nil {
		return nil, err
	}
	sum, err := s.service.Verify(ctx, matchID)
	if err != nil {
		return nil, s.toStatus(ctx, "verify match", err)
	}
	return toStruct(map[string]any{
		"matchId":  matchID,
		"checksum": sum,
	})
}

// StepReplay moves a replay cursor over a recorded match. The client sends the index
// it is viewing and gets back the frame the move lands on.
func (s *MatchServer) StepReplay(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	matchID, err := requiredString(req, "matchId")
	if err != nil {
		return nil, err
	}
	move := match.ReplayNext
	if v := req.GetFields()["move"].GetStringValue(); v != "" {
		move = match.ReplayMove(strings.ToUpper(v))
	}
	index := int(req.GetFields()["index"].GetNumberValue())
	count := int(req.GetFields()["count"].GetNumberValue())

	frame, err := s.service.StepReplay(ctx, matchID, index, move, count)
	if err != nil {
		return nil, s.toStatus(ctx, "step replay", err)
	}
	return toStruct(frame)
}

// ==================== Helper Functions ====================

func requiredString(req *structpb.Struct, key string) (string, error) {
	v, ok := req.GetFields()[key]
	if !ok || strings.TrimSpace(v.GetStringValue()) == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", key)
	}
	return v.GetStringValue(), nil
}

func stringList(req *structpb.Struct, key string) []string {
	list := req.GetFields()[key].GetListValue()
	out := make([]string, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		out = append(out, v.GetStringValue())
	}
	return out
}

// matchView is the client facing shape of a match.
type matchView struct {
	ID          string         `json:"id"`
	Player1ID   string         `json:"player1Id"`
	Player2ID   string         `json:"player2Id"`
	Lifecycle   string         `json:"lifecycle"`
	Version     int            `json:"version"`
	ActionCount int            `json:"actionCount"`
	State       any            `json:"state,omitempty"`
	Result      any            `json:"result,omitempty"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	Mulligans   map[string]int `json:"mulligans,omitempty"`
}

func newMatchView(m *match.Match) matchView {
	v := matchView{
		ID:          m.ID,
		Player1ID:   m.Player1ID,
		Player2ID:   m.Player2ID,
		Lifecycle:   m.Lifecycle.String(),
		Version:     m.Version,
		ActionCount: len(m.Actions),
		UpdatedAt:   m.UpdatedAt,
		Mulligans:   m.Mulligans,
	}
	if m.State != nil {
		v.State = m.State
	}
	if m.Result != nil {
		v.Result = m.Result
	}
	return v
}

// Helper function to extract host from context
func extractHostFromContext(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != net.Addr(nil) {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}
