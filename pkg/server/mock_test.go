package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/blackgold9/canvas-integration/pkg/canvas"
	"github.com/blackgold9/canvas-integration/pkg/coordinator"
	"github.com/blackgold9/canvas-integration/pkg/storage/storagemock"
)

const testKey = "01234567890123456789012345678901"

var testNow = time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)

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

func strPtr(s string) *string {
	return &s
}

func floatPtr(f float64) *float64 {
	return &f
}

// newTestServer returns a server whose entries all talk to api. Running
// coordinators are stopped when the test ends.
func newTestServer(t testing.TB, db *storagemock.MockDatabase, api canvas.API) *Server {
	coords := coordinator.NewMap()
	t.Cleanup(coords.StopAll)
	return &Server{
		coords:  coords,
		storage: db,
		newAPI: func(baseURL, token string) canvas.API {
			return api
		},
		now:           func() time.Time { return testNow },
		encryptionKey: testKey,
		serverName:    "test",
	}
}

// stubFamily sets up api to report one observee with one course and two
// assignments, one due tomorrow and one missed yesterday.
func stubFamily(api *mockAPI) {
	api.On("GetObservees", mock.Anything).Return([]canvas.Profile{{ID: "1", Name: "Alice"}}, nil)
	api.On("GetCourses", mock.Anything, "1").Return([]canvas.Course{
		{
			ID:   "10",
			Name: strPtr("P1-Algebra"),
			Enrollments: []canvas.Enrollment{{
				Type:   "StudentEnrollment",
				UserID: "1",
				Grades: &canvas.Grades{CurrentScore: floatPtr(93.5), CurrentGrade: strPtr("A")},
			}},
		},
	}, nil)
	api.On("GetPlannerItems", mock.Anything, "1", mock.Anything, mock.Anything, []string{"course_10"}).Return([]canvas.PlannerItem{
		{
			PlannableType: canvas.PlannableTypeAssignment,
			CourseID:      "10",
			ContextName:   strPtr("P1-Algebra"),
			Plannable: canvas.Plannable{
				ID:    "100",
				Title: "Homework 1",
				DueAt: strPtr(testNow.Add(24 * time.Hour).Format(time.RFC3339)),
			},
		},
		{
			PlannableType: canvas.PlannableTypeAssignment,
			CourseID:      "10",
			ContextName:   strPtr("P1-Algebra"),
			Plannable: canvas.Plannable{
				ID:    "101",
				Title: "Quiz 1",
				DueAt: strPtr(testNow.Add(-24 * time.Hour).Format(time.RFC3339)),
			},
		},
	}, nil)
}
