package service

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"

	"github.com/nebulahq/nebula/auth"
	"github.com/nebulahq/nebula/cockroach"
	"github.com/nebulahq/nebula/cockroach/migrator"
	"github.com/nebulahq/nebula/errs"
	"github.com/nebulahq/nebula/id"
	"github.com/nebulahq/nebula/types"
)

var (
	testDB        *pgxpool.Pool
	testCockroach *cockroach.Cockroach
)

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	var skipIntegration bool
	flag.BoolVar(&skipIntegration, "skip-integration", false, "Skip integration tests docker setup")
	flag.Parse()

	if skipIntegration || testing.Short() {
		return m.Run()
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		fmt.Printf("could not create docker pool: %v\n", err)
		return 1
	}

	var cleanup func() error
	testDB, cleanup, err = setupTestDB(pool)
	if err != nil {
		fmt.Printf("could not setup test db: %v\n", err)
		return 1
	}
	testCockroach = cockroach.New(testDB)

	if err := migrator.Migrate(context.Background(), testDB, cockroach.MigrationsFS); err != nil {
		fmt.Printf("could not migrate schema: %v\n", err)
		return 1
	}

	defer func() {
		if err := cleanup(); err != nil {
			fmt.Printf("could not cleanup cockroach container: %v\n", err)
		}
	}()

	return m.Run()
}

func setupTestDB(pool *dockertest.Pool) (*pgxpool.Pool, func() error, error) {
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "cockroachdb/cockroach",
		Tag:        "latest",
		Cmd:        []string{"start-single-node", "--insecure"},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create cockroach resource: %w", err)
	}

	var db *pgxpool.Pool
	err = pool.Retry(func() (err error) {
		hostPort := resource.GetHostPort("26257/tcp")
		db, err = pgxpool.New(context.Background(), "postgresql://root@"+hostPort+"/nebula?sslmode=disable")
		if err != nil {
			return fmt.Errorf("could not open db: %w", err)
		}

		// do not close db

		if err = db.Ping(context.Background()); err != nil {
			return fmt.Errorf("could not ping db: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return db, func() error {
		return pool.Purge(resource)
	}, nil
}

func testService(t *testing.T) *Service {
	t.Helper()

	if testing.Short() || testCockroach == nil {
		t.Skip("integration test")
	}

	svc := New(&Config{
		Cockroach:         testCockroach,
		BaseCtx:           context.Background(),
		BackgroundTimeout: 5 * time.Second,
	})
	t.Cleanup(func() { _ = svc.Close() })

	return svc
}

func createTestUser(t *testing.T, svc *Service, role types.UserRole) types.User {
	t.Helper()

	name := id.Generate()
	user, err := svc.CreateUser(context.Background(), types.CreateUser{
		Email:    name + "@example.com",
		Username: name,
		Role:     role,
	})
	if err != nil {
		t.Fatalf("could not create %s user: %v", role, err)
	}

	return user
}

func asUser(user types.User) context.Context {
	return auth.ContextWithUser(context.Background(), user)
}

func createTestProgram(t *testing.T, svc *Service, coach types.User, maxStudents *int32, modules []string) types.Program {
	t.Helper()

	slug := "program-" + id.Generate()
	_, err := svc.CreateProgram(asUser(coach), types.CreateProgram{
		Slug:        slug,
		Title:       "Test Program",
		Modules:     modules,
		MaxStudents: maxStudents,
	})
	if err != nil {
		t.Fatalf("could not create program: %v", err)
	}

	program, err := svc.Program(context.Background(), types.RetrieveProgram{Slug: slug})
	if err != nil {
		t.Fatalf("could not retrieve program: %v", err)
	}

	return program
}

func int32Ptr(n int32) *int32 { return &n }

func TestService_EnrollInProgram_capacity(t *testing.T) {
	svc := testService(t)

	coach := createTestUser(t, svc, types.UserRoleCoach)
	program := createTestProgram(t, svc, coach, int32Ptr(2), nil)

	for i := 0; i < 2; i++ {
		student := createTestUser(t, svc, types.UserRoleStudent)
		if _, err := svc.EnrollInProgram(asUser(student), types.EnrollInProgram{ProgramSlug: program.Slug}); err != nil {
			t.Fatalf("enrollment %d failed: %v", i+1, err)
		}
	}

	student := createTestUser(t, svc, types.UserRoleStudent)
	_, err := svc.EnrollInProgram(asUser(student), types.EnrollInProgram{ProgramSlug: program.Slug})
	if !errors.Is(err, cockroach.ErrProgramFull) {
		t.Fatalf("want ErrProgramFull, got %v", err)
	}

	count, err := testCockroach.ProgramEnrollmentCount(context.Background(), program.ID)
	if err != nil {
		t.Fatalf("could not count enrollments: %v", err)
	}
	if count != 2 {
		t.Errorf("enrollment count = %d, want 2", count)
	}
}

func TestService_EnrollInProgram_concurrent(t *testing.T) {
	svc := testService(t)

	coach := createTestUser(t, svc, types.UserRoleCoach)
	program := createTestProgram(t, svc, coach, int32Ptr(1), nil)

	const students = 6
	ctxs := make([]context.Context, students)
	for i := range ctxs {
		ctxs[i] = asUser(createTestUser(t, svc, types.UserRoleStudent))
	}

	start := make(chan struct{})
	errc := make(chan error, students)

	var wg sync.WaitGroup
	for i := 0; i < students; i++ {
		wg.Go(func() {
			<-start
			_, err := svc.EnrollInProgram(ctxs[i], types.EnrollInProgram{ProgramSlug: program.Slug})
			errc <- err
		})
	}
	close(start)
	wg.Wait()
	close(errc)

	var wins int
	for err := range errc {
		if err == nil {
			wins++
			continue
		}
		if !errors.Is(err, cockroach.ErrProgramFull) {
			t.Errorf("want ErrProgramFull, got %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("successful enrollments = %d, want 1", wins)
	}

	count, err := testCockroach.ProgramEnrollmentCount(context.Background(), program.ID)
	if err != nil {
		t.Fatalf("could not count enrollments: %v", err)
	}
	if count != 1 {
		t.Errorf("enrollment count = %d, want 1", count)
	}
}

func TestService_EnrollInProgram_cohortSeatConcurrent(t *testing.T) {
	svc := testService(t)

	coach := createTestUser(t, svc, types.UserRoleCoach)
	program := createTestProgram(t, svc, coach, nil, nil)

	_, err := svc.CreateCohort(asUser(coach), types.CreateCohort{
		ProgramID:   program.ID,
		Name:        "Cohort 1",
		StartDate:   time.Now().Add(24 * time.Hour),
		MaxStudents: int32Ptr(1),
	})
	if err != nil {
		t.Fatalf("could not create cohort: %v", err)
	}

	const students = 4
	ctxs := make([]context.Context, students)
	for i := range ctxs {
		ctxs[i] = asUser(createTestUser(t, svc, types.UserRoleStudent))
	}

	start := make(chan struct{})
	errc := make(chan error, students)

	var wg sync.WaitGroup
	for i := 0; i < students; i++ {
		wg.Go(func() {
			<-start
			_, err := svc.EnrollInProgram(ctxs[i], types.EnrollInProgram{ProgramSlug: program.Slug})
			errc <- err
		})
	}
	close(start)
	wg.Wait()
	close(errc)

	var wins int
	for err := range errc {
		if err == nil {
			wins++
			continue
		}
		if !errors.Is(err, cockroach.ErrCohortsFull) {
			t.Errorf("want ErrCohortsFull, got %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("successful enrollments = %d, want 1", wins)
	}
}

func TestService_EnrollInProgram_duplicate(t *testing.T) {
	svc := testService(t)

	coach := createTestUser(t, svc, types.UserRoleCoach)
	program := createTestProgram(t, svc, coach, nil, nil)
	student := createTestUser(t, svc, types.UserRoleStudent)

	if _, err := svc.EnrollInProgram(asUser(student), types.EnrollInProgram{ProgramSlug: program.Slug}); err != nil {
		t.Fatalf("first enrollment failed: %v", err)
	}

	_, err := svc.EnrollInProgram(asUser(student), types.EnrollInProgram{ProgramSlug: program.Slug})
	if !errors.Is(err, cockroach.ErrAlreadyEnrolled) {
		t.Fatalf("want ErrAlreadyEnrolled, got %v", err)
	}

	count, err := testCockroach.ProgramEnrollmentCount(context.Background(), program.ID)
	if err != nil {
		t.Fatalf("could not count enrollments: %v", err)
	}
	if count != 1 {
		t.Errorf("enrollment count = %d, want 1", count)
	}

	got, err := svc.Program(context.Background(), types.RetrieveProgram{Slug: program.Slug})
	if err != nil {
		t.Fatalf("could not retrieve program: %v", err)
	}
	if got.CurrentEnrollments != 1 {
		t.Errorf("current enrollments = %d, want 1", got.CurrentEnrollments)
	}
}

func TestService_EnrollInProgram_cohortFull(t *testing.T) {
	svc := testService(t)

	coach := createTestUser(t, svc, types.UserRoleCoach)
	program := createTestProgram(t, svc, coach, nil, nil)

	_, err := svc.CreateCohort(asUser(coach), types.CreateCohort{
		ProgramID:   program.ID,
		Name:        "Cohort 1",
		StartDate:   time.Now().Add(24 * time.Hour),
		MaxStudents: int32Ptr(1),
	})
	if err != nil {
		t.Fatalf("could not create cohort: %v", err)
	}

	first := createTestUser(t, svc, types.UserRoleStudent)
	enrolled, err := svc.EnrollInProgram(asUser(first), types.EnrollInProgram{ProgramSlug: program.Slug})
	if err != nil {
		t.Fatalf("first enrollment failed: %v", err)
	}
	if enrolled.EnrollmentID == "" {
		t.Fatal("want enrollment ID, got empty")
	}

	second := createTestUser(t, svc, types.UserRoleStudent)
	_, err = svc.EnrollInProgram(asUser(second), types.EnrollInProgram{ProgramSlug: program.Slug})
	if !errors.Is(err, cockroach.ErrCohortsFull) {
		t.Fatalf("want ErrCohortsFull, got %v", err)
	}
}

func TestService_UpdateEnrollmentProgress(t *testing.T) {
	svc := testService(t)

	coach := createTestUser(t, svc, types.UserRoleCoach)
	program := createTestProgram(t, svc, coach, nil, []string{"Intro", "Basics"})
	student := createTestUser(t, svc, types.UserRoleStudent)
	ctx := asUser(student)

	enrolled, err := svc.EnrollInProgram(ctx, types.EnrollInProgram{ProgramSlug: program.Slug})
	if err != nil {
		t.Fatalf("enrollment failed: %v", err)
	}

	got, err := svc.UpdateEnrollmentProgress(ctx, types.UpdateEnrollmentProgress{
		EnrollmentID: enrolled.EnrollmentID,
		Progress:     100,
	})
	if err != nil {
		t.Fatalf("update to 100 failed: %v", err)
	}
	if got.Status != types.EnrollmentStatusCompleted {
		t.Errorf("status = %q, want %q", got.Status, types.EnrollmentStatusCompleted)
	}
	if got.CompletionDate == nil {
		t.Error("want completion date, got nil")
	}

	// Moving below 100 keeps the completed status but drops the date.
	got, err = svc.UpdateEnrollmentProgress(ctx, types.UpdateEnrollmentProgress{
		EnrollmentID: enrolled.EnrollmentID,
		Progress:     50,
	})
	if err != nil {
		t.Fatalf("update to 50 failed: %v", err)
	}
	if got.Status != types.EnrollmentStatusCompleted {
		t.Errorf("status = %q, want sticky %q", got.Status, types.EnrollmentStatusCompleted)
	}
	if got.CompletionDate != nil {
		t.Errorf("completion date = %v, want nil", got.CompletionDate)
	}

	got, err = svc.UpdateEnrollmentProgress(ctx, types.UpdateEnrollmentProgress{
		EnrollmentID: enrolled.EnrollmentID,
		Progress:     150,
	})
	if err != nil {
		t.Fatalf("update to 150 failed: %v", err)
	}
	if got.Progress != 100 {
		t.Errorf("progress = %d, want clamped to 100", got.Progress)
	}
	if got.CompletionDate == nil {
		t.Error("want completion date after reaching 100 again, got nil")
	}

	enrollments, err := svc.StudentEnrollments(ctx, types.ListEnrollments{})
	if err != nil {
		t.Fatalf("could not list enrollments: %v", err)
	}
	if len(enrollments) != 1 {
		t.Fatalf("enrollments = %d, want 1", len(enrollments))
	}
	wantModules := []types.EnrollmentModule{
		{Title: "Intro", Status: types.ModuleStatusCompleted},
		{Title: "Basics", Status: types.ModuleStatusCompleted},
	}
	for i, want := range wantModules {
		if enrollments[0].Modules[i] != want {
			t.Errorf("module %d = %v, want %v", i, enrollments[0].Modules[i], want)
		}
	}
}

func TestService_UpdateEnrollmentProgress_notOwned(t *testing.T) {
	svc := testService(t)

	coach := createTestUser(t, svc, types.UserRoleCoach)
	program := createTestProgram(t, svc, coach, nil, nil)
	student := createTestUser(t, svc, types.UserRoleStudent)

	enrolled, err := svc.EnrollInProgram(asUser(student), types.EnrollInProgram{ProgramSlug: program.Slug})
	if err != nil {
		t.Fatalf("enrollment failed: %v", err)
	}

	other := createTestUser(t, svc, types.UserRoleStudent)
	_, err = svc.UpdateEnrollmentProgress(asUser(other), types.UpdateEnrollmentProgress{
		EnrollmentID: enrolled.EnrollmentID,
		Progress:     10,
	})
	if !errs.IsNotFound(err) {
		t.Fatalf("want not found for someone else's enrollment, got %v", err)
	}
}

func TestService_Messaging_unreadCounts(t *testing.T) {
	svc := testService(t)

	alice := createTestUser(t, svc, types.UserRoleStudent)
	bob := createTestUser(t, svc, types.UserRoleCoach)

	created, err := svc.CreateConversation(asUser(alice), types.CreateConversation{
		OtherUserID: bob.ID,
		Content:     "hey coach",
	})
	if err != nil {
		t.Fatalf("could not create conversation: %v", err)
	}

	conversation, err := svc.Conversation(asUser(bob), types.RetrieveConversation{ConversationID: created.ID})
	if err != nil {
		t.Fatalf("could not retrieve conversation: %v", err)
	}
	if conversation.Participation == nil {
		t.Fatal("want participation, got nil")
	}
	if got := conversation.Participation.UnreadCount; got != 1 {
		t.Errorf("bob unread count = %d, want 1", got)
	}
	if conversation.LastMessage == nil || *conversation.LastMessage != "hey coach" {
		t.Errorf("last message = %v, want %q", conversation.LastMessage, "hey coach")
	}

	if _, err := svc.CreateMessage(asUser(alice), types.CreateMessage{
		ConversationID: created.ID,
		Content:        "are you there?",
	}); err != nil {
		t.Fatalf("could not send message: %v", err)
	}

	conversation, err = svc.Conversation(asUser(bob), types.RetrieveConversation{ConversationID: created.ID})
	if err != nil {
		t.Fatalf("could not retrieve conversation: %v", err)
	}
	if got := conversation.Participation.UnreadCount; got != 2 {
		t.Errorf("bob unread count = %d, want 2", got)
	}

	// Sending does not bump the sender's own counter.
	conversation, err = svc.Conversation(asUser(alice), types.RetrieveConversation{ConversationID: created.ID})
	if err != nil {
		t.Fatalf("could not retrieve conversation: %v", err)
	}
	if got := conversation.Participation.UnreadCount; got != 0 {
		t.Errorf("alice unread count = %d, want 0", got)
	}

	if err := svc.MarkConversationRead(asUser(bob), types.MarkConversationRead{ConversationID: created.ID}); err != nil {
		t.Fatalf("could not mark conversation read: %v", err)
	}

	conversation, err = svc.Conversation(asUser(bob), types.RetrieveConversation{ConversationID: created.ID})
	if err != nil {
		t.Fatalf("could not retrieve conversation: %v", err)
	}
	if got := conversation.Participation.UnreadCount; got != 0 {
		t.Errorf("bob unread count after read = %d, want 0", got)
	}

	page, err := svc.Messages(asUser(bob), types.ListMessages{ConversationID: created.ID})
	if err != nil {
		t.Fatalf("could not list messages: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("messages = %d, want 2", len(page.Items))
	}
	for _, msg := range page.Items {
		if !msg.IsRead {
			t.Errorf("message %s is not read after mark read", msg.ID)
		}
	}
}

func TestService_Messages_nonParticipant(t *testing.T) {
	svc := testService(t)

	alice := createTestUser(t, svc, types.UserRoleStudent)
	bob := createTestUser(t, svc, types.UserRoleStudent)
	eve := createTestUser(t, svc, types.UserRoleStudent)

	created, err := svc.CreateConversation(asUser(alice), types.CreateConversation{
		OtherUserID: bob.ID,
		Content:     "private",
	})
	if err != nil {
		t.Fatalf("could not create conversation: %v", err)
	}

	_, err = svc.Messages(asUser(eve), types.ListMessages{ConversationID: created.ID})
	if !errs.IsPermissionDenied(err) {
		t.Fatalf("want permission denied, got %v", err)
	}

	_, err = svc.CreateMessage(asUser(eve), types.CreateMessage{
		ConversationID: created.ID,
		Content:        "let me in",
	})
	if !errs.IsPermissionDenied(err) {
		t.Fatalf("want permission denied, got %v", err)
	}

	_, err = svc.Conversation(asUser(eve), types.RetrieveConversation{ConversationID: created.ID})
	if !errs.IsNotFound(err) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestService_CreateProgram_requiresCoach(t *testing.T) {
	svc := testService(t)

	student := createTestUser(t, svc, types.UserRoleStudent)
	_, err := svc.CreateProgram(asUser(student), types.CreateProgram{
		Slug:  "students-cannot-" + id.Generate(),
		Title: "Nope",
	})
	if !errs.IsPermissionDenied(err) {
		t.Fatalf("want permission denied, got %v", err)
	}
}
