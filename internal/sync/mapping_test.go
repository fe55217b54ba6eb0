package sync

import (
	"encoding/json"
	"testing"
	"time"

	"listings-service/internal/hubspot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapContact(t *testing.T) {
	obj := hubspot.Object{
		ID:        "9001",
		CreatedAt: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Properties: map[string]string{
			"email":            "jane@mainstreetdental.com",
			"firstname":        "Jane",
			"lastname":         "Doe",
			"phone":            "+1 555 0100",
			"company":          "Main Street Dental",
			"lifecyclestage":   "customer",
			"createdate":       "2023-02-10T08:00:00Z",
			"lastmodifieddate": "2024-06-01T10:30:00Z",
		},
	}

	contact, err := MapContact(&obj)
	require.NoError(t, err)

	assert.Equal(t, "9001", contact.HubspotID)
	assert.Equal(t, "jane@mainstreetdental.com", contact.Email)
	assert.Equal(t, "Jane", contact.FirstName)
	assert.Equal(t, "Doe", contact.LastName)
	require.NotNil(t, contact.Phone)
	assert.Equal(t, "+1 555 0100", *contact.Phone)
	require.NotNil(t, contact.LifecycleStage)
	assert.Equal(t, "customer", *contact.LifecycleStage)

	// Property timestamps beat envelope timestamps
	assert.Equal(t, time.Date(2023, 2, 10, 8, 0, 0, 0, time.UTC), contact.HSCreatedAt)
	assert.Equal(t, time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC), contact.HSUpdatedAt)

	var stored map[string]string
	require.NoError(t, json.Unmarshal(contact.Properties, &stored))
	assert.Equal(t, "customer", stored["lifecyclestage"])
}

func TestMapContactOptionalFieldsStayNil(t *testing.T) {
	obj := hubspot.Object{
		ID:         "9002",
		UpdatedAt:  time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Properties: map[string]string{"email": "no-phone@example.com"},
	}

	contact, err := MapContact(&obj)
	require.NoError(t, err)
	assert.Nil(t, contact.Phone)
	assert.Nil(t, contact.CompanyName)
	assert.Nil(t, contact.LifecycleStage)
	// Falls back to the envelope timestamp when the property is missing
	assert.Equal(t, obj.UpdatedAt, contact.HSUpdatedAt)
}

func TestMapContactRejectsMissingID(t *testing.T) {
	_, err := MapContact(&hubspot.Object{Properties: map[string]string{"email": "x@y.co"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no id")
}

func TestMapCompany(t *testing.T) {
	obj := hubspot.Object{
		ID:        "310",
		CreatedAt: time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		Properties: map[string]string{
			"name":                "Main Street Dental",
			"domain":              "mainstreetdental.com",
			"city":                "Springfield",
			"state":               "IL",
			"industry":            "DENTAL",
			"hs_lastmodifieddate": "1717243200000",
		},
	}

	company, err := MapCompany(&obj)
	require.NoError(t, err)

	assert.Equal(t, "310", company.HubspotID)
	assert.Equal(t, "Main Street Dental", company.Name)
	require.NotNil(t, company.Domain)
	assert.Equal(t, "mainstreetdental.com", *company.Domain)
	assert.Nil(t, company.Phone)

	// Epoch-ms property values parse too
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), company.HSUpdatedAt.UTC())
}

func TestMapCompanyRejectsMissingID(t *testing.T) {
	_, err := MapCompany(&hubspot.Object{})
	require.Error(t, err)
}
