package engine

import (
	"go.uber.org/zap"

	"github.com/roach88/abacus/internal/ir"
)

// invocation tracks one pass through the stage machine.
type invocation struct {
	stage  ir.Stage
	logger *zap.Logger
}

func begin(logger *zap.Logger, program string, programID ir.Identity) *invocation {
	inv := &invocation{
		stage:  ir.StageStart,
		logger: logger.With(zap.String("program", program), zap.String("program_id", programID.Short())),
	}
	inv.logger.Debug(program + " program entrypoint")
	return inv
}

func (inv *invocation) reach(stage ir.Stage) {
	inv.stage = stage
}

// fail stamps err with the last stage reached and logs it.
func (inv *invocation) fail(err error) error {
	err = ir.AtStage(err, inv.stage)
	inv.logger.Debug("invocation failed",
		zap.String("stage", string(inv.stage)),
		zap.String("code", string(ir.CodeOf(err))),
		zap.Error(err),
	)
	return err
}

func (inv *invocation) done() {
	inv.stage = ir.StageDone
	inv.logger.Debug("invocation done")
}
