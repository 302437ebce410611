package server

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"
)

// SubmitAction applies one player action. The response carries the updated match
// and the action summary appended to its history.
func (s *MatchServer) SubmitAction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	matchID, err := requiredString(req, "matchId")
	if err != nil {
		return nil, err
	}
	playerID, err := requiredString(req, "playerId")
	if err != nil {
		return nil, err
	}
	actionType, err := requiredString(req, "actionType")
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if v, ok := req.GetFields()["data"]; ok && v.GetStructValue() != nil {
		data = v.GetStructValue().AsMap()
	}

	m, summary, err := s.service.Submit(ctx, matchID, playerID, actionType, data)
	if err != nil {
		return nil, s.toStatus(ctx, "submit action", err)
	}

	s.logger.Debug("action submitted",
		zap.String("match_id", matchID),
		zap.String("player_id", playerID),
		zap.String("action_type", actionType),
		zap.Int("version", m.Version),
	)
	return toStruct(map[string]any{
		"match":   newMatchView(m),
		"summary": summary,
	})
}

// AvailableActions lists the action types the player may submit right now.
func (s *MatchServer) AvailableActions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	matchID, err := requiredString(req, "matchId")
	if err != nil {
		return nil, err
	}
	playerID, err := requiredString(req, "playerId")
	if err != nil {
		return nil, err
	}
	actions, err := s.service.AvailableActions(ctx, matchID, playerID)
	if err != nil {
		return nil, s.toStatus(ctx, "available actions", err)
	}
	names := make([]string, 0, len(actions))
	for _, a := range actions {
		names = append(names, string(a))
	}
	return toStruct(map[string]any{
		"matchId":  matchID,
		"playerId": playerID,
		"actions":  names,
	})
}

// toStruct renders v through its JSON form so field names follow the json tags.
func toStruct(v any) (*structpb.Struct, error) {
	fields, err := toMap(v)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(fields)
}

func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}
