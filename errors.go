package dmd

import (
	"errors"
)

var (
	ErrUninitializedModel    = errors.New("uninitialized model")
	ErrNotFitted             = errors.New("model has not been fit to snapshots")
	ErrSingularOperator      = errors.New("retained singular value is numerically zero")
	ErrUnsupportedSortMethod = errors.New("unsupported eigenvalue sort method")
	ErrNoImprovingFit        = errors.New("no hyperparameter combination produced a finite reconstruction error")
)
