package coordinator

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/blackgold9/canvas-integration/pkg/canvas"
)

type mockAPI struct {
	mock.Mock
}

var _ canvas.API = (*mockAPI)(nil)

func (m *mockAPI) GetProfile(ctx context.Context) (canvas.Profile, error) {
	args := m.Called(ctx)
	return args.Get(0).(canvas.Profile), args.Error(1)
}

func (m *mockAPI) GetObservees(ctx context.Context) ([]canvas.Profile, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]canvas.Profile), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAPI) GetCourses(ctx context.Context, userID string) ([]canvas.Course, error) {
	args := m.Called(ctx, userID)
	if v := args.Get(0); v != nil {
		return v.([]canvas.Course), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAPI) GetPlannerItems(ctx context.Context, userID string, start, end time.Time, contextCodes []string) ([]canvas.PlannerItem, error) {
	args := m.Called(ctx, userID, start, end, contextCodes)
	if v := args.Get(0); v != nil {
		return v.([]canvas.PlannerItem), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAPI) GetCourseEnrollments(ctx context.Context, courseID, userID string) ([]canvas.Enrollment, error) {
	args := m.Called(ctx, courseID, userID)
	if v := args.Get(0); v != nil {
		return v.([]canvas.Enrollment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAPI) GetCourseAssignments(ctx context.Context, courseID, userID string) ([]canvas.Assignment, error) {
	args := m.Called(ctx, courseID, userID)
	if v := args.Get(0); v != nil {
		return v.([]canvas.Assignment), args.Error(1)
	}
	return nil, args.Error(1)
}
