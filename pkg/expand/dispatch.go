package expand

import "map_shortcuts/pkg/cell"

// DefaultMatrixMaxResolution is the highest resolution index solved by the
// matrix solver; higher indices go to the join. Both solvers produce the
// same closure, so the boundary only moves throughput.
const DefaultMatrixMaxResolution cell.Resolution = 9

// Dispatch picks a solver from the resolution alone.
type Dispatch struct {
	MatrixMaxResolution cell.Resolution
	Matrix              Solver
	Join                Solver
}

// NewDispatch returns the default hybrid table: matrix for resolutions up to
// matrixMax (Root included), join above.
func NewDispatch(matrixMax cell.Resolution, matrix MatrixSolver, join JoinSolver) Dispatch {
	return Dispatch{MatrixMaxResolution: matrixMax, Matrix: matrix, Join: join}
}

// SolverFor returns the solver for resolution r.
func (d Dispatch) SolverFor(r cell.Resolution) Solver {
	if r <= d.MatrixMaxResolution {
		return d.Matrix
	}
	return d.Join
}
