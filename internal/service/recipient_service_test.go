package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-bulletin-api/internal/dto"
	"github.com/noah-isme/campus-bulletin-api/internal/models"
	appErrors "github.com/noah-isme/campus-bulletin-api/pkg/errors"
)

func csvUpload(name, body string) dto.FileUpload {
	return dto.FileUpload{
		FileName: name,
		Size:     int64(len(body)),
		Open:     func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewBufferString(body)), nil },
	}
}

func TestRecipientImportCSV(t *testing.T) {
	svc := NewRecipientService(nil, 0, nil)
	body := "Full Name,Reg ID,E-mail\nAda Lovelace,S1,ada@uni.edu\n,,\nAlan Turing,S2,\n"

	res, err := svc.Import(context.Background(), csvUpload("class.csv", body))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, []models.Recipient{
		{Name: "Ada Lovelace", ID: "S1", Email: "ada@uni.edu"},
		{Name: "Alan Turing", ID: "S2"},
	}, res.Recipients)
}

func TestRecipientImportRejections(t *testing.T) {
	svc := NewRecipientService(nil, 64, nil)
	cases := map[string]dto.FileUpload{
		"unsupported": csvUpload("class.txt", "name\nA\n"),
		"no columns":  csvUpload("class.csv", "foo,bar\n1,2\n"),
		"too large":   csvUpload("class.csv", "name\n"+strings.Repeat("x", 100)),
		"missing":     {},
	}
	for name, file := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Import(context.Background(), file)
			assert.True(t, errors.Is(err, appErrors.ErrValidation))
		})
	}
}

type stubAnnouncementReader map[string]*models.Announcement

func (s stubAnnouncementReader) Get(_ context.Context, id string) (*models.Announcement, error) {
	if a, ok := s[id]; ok {
		return a, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
}

func TestRecipientExport(t *testing.T) {
	reader := stubAnnouncementReader{"a1": {
		ID: "a1", Title: "Trip", AuthorID: "t1",
		Students: models.RecipientList{{Name: "Ada", ID: "S1", Email: "ada@uni.edu"}},
		Staff:    models.RecipientList{{Name: "Bob", ID: "F1"}},
	}}
	svc := NewRecipientService(reader, 0, nil)

	file, err := svc.Export(context.Background(), "a1", "t1", "")
	require.NoError(t, err)
	assert.Equal(t, "recipients-a1.csv", file.FileName)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)
	assert.Contains(t, string(file.Content), "Student,Ada,S1,ada@uni.edu")
	assert.Contains(t, string(file.Content), "Staff,Bob,F1,")

	pdf, err := svc.Export(context.Background(), "a1", "t1", "pdf")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf.Content, []byte("%PDF")))

	_, err = svc.Export(context.Background(), "a1", "t2", "csv")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	_, err = svc.Export(context.Background(), "missing", "t1", "csv")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	_, err = svc.Export(context.Background(), "a1", "t1", "xml")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
