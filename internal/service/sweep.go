package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/catering-system/internal/activity"
	"github.com/mmeshcher/catering-system/internal/lifecycle"
	"github.com/mmeshcher/catering-system/internal/model"
	"github.com/mmeshcher/catering-system/internal/notify"
)

// errPenaltyNotDue откатывает транзакцию, если под блокировкой выяснилось, что штраф отправлять не нужно.
var errPenaltyNotDue = errors.New("penalty not due")

// SweepReport подводит итог одного прохода проверки возврата оборудования.
type SweepReport struct {
	Candidates   int `json:"candidates"`
	Notified     int `json:"notified"`
	Skipped      int `json:"skipped"`
	Inconsistent int `json:"inconsistent"`
	Failed       int `json:"failed"`
}

// StartEquipmentSweeps периодически запускает проверку возврата оборудования до отмены ctx.
// Первый проход выполняется сразу. При нулевом интервале проверка отключена.
func (s *Service) StartEquipmentSweeps(ctx context.Context) {
	if s.opts.SweepInterval <= 0 {
		s.logger.Info("equipment sweep disabled")
		return
	}

	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()

	for {
		if _, err := s.RunEquipmentReturnSweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("equipment sweep error", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunEquipmentReturnSweep отправляет уведомления о штрафе по заказам, где оборудование
// не вернули в срок. Каждый заказ обрабатывается в своей транзакции, флаг взводится
// под блокировкой строки, поэтому повторный или параллельный проход уведомление не дублирует.
func (s *Service) RunEquipmentReturnSweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	candidates, err := s.repo.GetPenaltyCandidates(ctx, s.opts.SweepBatch)
	if err != nil {
		return report, err
	}
	report.Candidates = len(candidates)

	now := s.now()
	for _, o := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		decision, err := lifecycle.PenaltyDue(o, now, s.opts.PenaltyWindow, s.opts.Location)
		if err != nil {
			report.Inconsistent++
			s.logger.Warn("skip inconsistent order", zap.Error(err), zap.String("order", o.Number))
			continue
		}
		if !decision.Due {
			report.Skipped++
			continue
		}

		updated, err := s.repo.UpdateOrder(ctx, o.Number, func(cur model.Order) (model.Order, *model.StatusHistoryEntry, error) {
			next, d, err := lifecycle.MarkPenaltyNoticeSent(cur, now, s.opts.PenaltyWindow, s.opts.Location)
			if err != nil {
				return cur, nil, err
			}
			if !d.Due {
				return cur, nil, errPenaltyNotDue
			}
			decision = d
			return next, nil, nil
		})
		switch {
		case errors.Is(err, errPenaltyNotDue):
			report.Skipped++
			continue
		case errors.Is(err, lifecycle.ErrInconsistentState):
			report.Inconsistent++
			s.logger.Warn("skip inconsistent order", zap.Error(err), zap.String("order", o.Number))
			continue
		case err != nil:
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Failed++
			s.logger.Error("mark penalty notice error", zap.Error(err), zap.String("order", o.Number))
			continue
		}

		report.Notified++
		s.logger.Info("equipment penalty notice",
			zap.String("order", updated.Number), zap.Time("deadline", decision.Deadline))
		s.record(ctx, model.Actor{}, activity.EventEquipmentPenalty, map[string]any{
			"order_number": updated.Number,
			"deadline":     decision.Deadline,
			"amount":       s.opts.PenaltyAmount.StringFixed(2),
		})

		amount := s.opts.PenaltyAmount
		deadline := decision.Deadline
		s.notify(ctx, notify.Event{
			Type:        notify.EventEquipmentPenalty,
			RecipientID: updated.CustomerID,
			OrderNumber: updated.Number,
			ServiceDate: updated.ServiceDate,
			Amount:      &amount,
			Deadline:    &deadline,
		})
	}

	s.logger.Info("equipment sweep finished",
		zap.Int("candidates", report.Candidates),
		zap.Int("notified", report.Notified),
		zap.Int("skipped", report.Skipped),
		zap.Int("inconsistent", report.Inconsistent),
		zap.Int("failed", report.Failed))

	return report, nil
}
