package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erazemk/skladnost/internal/db"
	"github.com/erazemk/skladnost/internal/model"
)

func TestProjectsAndCompliances(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	p, err := CreateProject(ctx, database, "Quarry North", "Permit 12/2024")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	CreateProject(ctx, database, "Abattoir", "")

	projects, _ := ListProjects(ctx, database)
	if len(projects) != 2 || projects[0].Name != "Abattoir" {
		t.Errorf("expected 2 projects ordered by name, got %+v", projects)
	}

	c, err := CreateCompliance(ctx, database, p.ID, "Dust inspection")
	if err != nil {
		t.Fatalf("CreateCompliance: %v", err)
	}
	if c.Status != model.ComplianceOpen {
		t.Errorf("expected status 'open', got %q", c.Status)
	}
	if c.ProjectName != "Quarry North" {
		t.Errorf("expected joined project name, got %q", c.ProjectName)
	}

	list, _ := ListCompliances(ctx, database, p.ID)
	if len(list) != 1 {
		t.Errorf("expected 1 compliance, got %d", len(list))
	}

	if err := SetComplianceStatus(ctx, database, c.ID, "archived"); err == nil {
		t.Error("expected invalid status to be rejected")
	}
}

func TestCreateSubmissionClosedCompliance(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	p, _ := CreateProject(ctx, database, "P", "")
	c, _ := CreateCompliance(ctx, database, p.ID, "C")
	SetComplianceStatus(ctx, database, c.ID, model.ComplianceClosed)

	_, err := CreateSubmission(ctx, database, c.ID, "late", nil)
	if !errors.Is(err, ErrComplianceClosed) {
		t.Errorf("expected ErrComplianceClosed, got %v", err)
	}
}

func TestGetSubmissionWithElements(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "ana", "hash", model.RoleInspector)
	p, _ := CreateProject(ctx, database, "P", "")
	c, _ := CreateCompliance(ctx, database, p.ID, "C")
	sub, err := CreateSubmission(ctx, database, c.ID, "Line1\nLine2", &user.ID)
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}
	if len(sub.Items) != 0 {
		t.Errorf("expected empty items, got %d", len(sub.Items))
	}

	later := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)
	CreateElement(ctx, database, model.Element{SubmissionID: sub.ID, Type: model.ElementText, Text: "note", Timestamp: later})
	CreateElement(ctx, database, model.Element{
		SubmissionID: sub.ID,
		Type:         model.ElementPhoto,
		Caption:      "Gate",
		Geo:          &model.Geo{Zone: "33T", Easting: 461000.5, Northing: 5100000.25},
		Timestamp:    earlier,
	})

	got, err := GetSubmission(ctx, database, c.ID, sub.ID)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if got.SubmittedByName != "ana" {
		t.Errorf("expected author 'ana', got %q", got.SubmittedByName)
	}
	if len(got.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got.Items))
	}
	first := got.Items[0]
	if first.Type != model.ElementPhoto {
		t.Errorf("expected elements in timestamp order, got %q first", first.Type)
	}
	if !first.Timestamp.Equal(earlier) {
		t.Errorf("expected timestamp %v, got %v", earlier, first.Timestamp)
	}
	if first.Geo == nil || first.Geo.Zone != "33T" || first.Geo.Northing != 5100000.25 {
		t.Errorf("unexpected geo: %+v", first.Geo)
	}
	if got.Items[1].Geo != nil {
		t.Error("expected nil geo for element without coordinates")
	}

	// Submission ids are scoped to their compliance.
	other, _ := CreateCompliance(ctx, database, p.ID, "Other")
	scoped, err := GetSubmission(ctx, database, other.ID, sub.ID)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if scoped != nil {
		t.Error("expected nil for submission under a different compliance")
	}

	subs, _ := ListSubmissions(ctx, database, c.ID)
	if len(subs) != 1 || subs[0].ItemCount != 2 {
		t.Errorf("expected 1 submission with 2 items, got %+v", subs)
	}
}

func TestElementImageAndThumbnail(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	p, _ := CreateProject(ctx, database, "P", "")
	c, _ := CreateCompliance(ctx, database, p.ID, "C")
	sub, _ := CreateSubmission(ctx, database, c.ID, "", nil)
	photo, _ := CreateElement(ctx, database, model.Element{SubmissionID: sub.ID, Type: model.ElementPhoto})
	voice, _ := CreateElement(ctx, database, model.Element{SubmissionID: sub.ID, Type: model.ElementVoice})

	err := SetElementImage(ctx, database, sub.ID, photo.ID, []byte("full"), "image/jpeg", "jpg", []byte("thumb"))
	if err != nil {
		t.Fatalf("SetElementImage: %v", err)
	}
	err = SetElementImage(ctx, database, sub.ID, voice.ID, []byte("full"), "image/jpeg", "jpg", []byte("thumb"))
	if !errors.Is(err, ErrNotPhoto) {
		t.Errorf("expected ErrNotPhoto, got %v", err)
	}

	data, mime, _ := GetElementImage(ctx, database, sub.ID, photo.ID)
	if string(data) != "full" || mime != "image/jpeg" {
		t.Errorf("unexpected image %q %q", data, mime)
	}

	thumb, err := GetElementThumbnail(ctx, database, c.ID, sub.ID, photo.ID)
	if err != nil {
		t.Fatalf("GetElementThumbnail: %v", err)
	}
	if string(thumb) != "thumb" {
		t.Errorf("expected thumbnail, got %q", thumb)
	}

	missing, _ := GetElementThumbnail(ctx, database, c.ID+1, sub.ID, photo.ID)
	if missing != nil {
		t.Error("expected no thumbnail under a different compliance")
	}

	got, _ := GetElement(ctx, database, sub.ID, photo.ID)
	if got.ImageSize != 4 || got.InternalExt != "jpg" {
		t.Errorf("expected image size 4 and ext jpg, got %d %q", got.ImageSize, got.InternalExt)
	}

	if _, err := CreateElement(ctx, database, model.Element{SubmissionID: sub.ID, Type: "document"}); err == nil {
		t.Error("expected invalid element type to be rejected")
	}
}
