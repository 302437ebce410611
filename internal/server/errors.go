package server

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/match"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/rules"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/repository"
)

var failureCodes = map[rules.Kind]codes.Code{
	rules.KindValidation:              codes.InvalidArgument,
	rules.KindIllegalState:            codes.FailedPrecondition,
	rules.KindNotFound:                codes.NotFound,
	rules.KindEnergySelectionRequired: codes.FailedPrecondition,
	rules.KindCatalogLookup:           codes.Unavailable,
}

// toStatus converts a service error into a gRPC status. Rule failures carry a
// structpb detail with kind, code, message and the optional energy selection prompt.
func (s *MatchServer) toStatus(ctx context.Context, op string, err error) error {
	if failure, ok := rules.AsFailure(err); ok {
		st := status.New(failureCodes[failure.Kind], failure.Error())
		if detail, derr := failureDetail(failure); derr == nil {
			if withDetail, werr := st.WithDetails(detail); werr == nil {
				st = withDetail
			}
		}
		s.logger.Debug("action rejected",
			zap.String("op", op),
			zap.String("kind", string(failure.Kind)),
			zap.String("code", failure.Code),
		)
		return st.Err()
	}

	var deckErr *match.DeckError
	switch {
	case errors.As(err, &deckErr):
		st := status.New(codes.InvalidArgument, deckErr.Error())
		if detail, derr := toStruct(map[string]any{
			"playerId": deckErr.PlayerID,
			"problems": deckErr.Report.Problems,
		}); derr == nil {
			if withDetail, werr := st.WithDetails(detail); werr == nil {
				st = withDetail
			}
		}
		return st.Err()
	case errors.Is(err, repository.ErrMatchNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, repository.ErrMatchExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, repository.ErrVersionConflict), errors.Is(err, repository.ErrHistoryRewrite):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, match.ErrReplayDiverged):
		return status.Error(codes.DataLoss, err.Error())
	case errors.Is(err, match.ErrReplayBounds):
		return status.Error(codes.OutOfRange, err.Error())
	case errors.Is(err, match.ErrUnknownReplayMove):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	}

	s.logger.Error("match service failed",
		zap.String("op", op),
		zap.String("host", extractHostFromContext(ctx)),
		zap.Error(err),
	)
	return status.Error(codes.Internal, err.Error())
}

func failureDetail(f *rules.Failure) (*structpb.Struct, error) {
	body := map[string]any{
		"kind":    string(f.Kind),
		"code":    f.Code,
		"message": f.Message,
	}
	if len(f.Details) > 0 {
		body["details"] = f.Details
	}
	if f.Selection != nil {
		body["selection"] = f.Selection
	}
	return toStruct(body)
}
