package handlers_test

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sitework/sitework/internal/models"
	"github.com/sitework/sitework/internal/permissions"
	"github.com/sitework/sitework/internal/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionCheckedBeforeBinding(t *testing.T) {
	e := newEnv(t)
	_, client := e.user(permissions.RoleClient)

	for _, body := range []interface{}{nil, gin.H{}, gin.H{"name": "Valid Co"}, "not an object"} {
		assert.Equal(t, "forbidden", errorCode(t, e.do("POST", "/api/clients", client, body), http.StatusForbidden))
	}
	errorCode(t, e.do("DELETE", "/api/clients/anything", client, nil), http.StatusForbidden)
	errorCode(t, e.do("GET", "/api/clients", "", nil), http.StatusUnauthorized)
}

func TestClientCRUD(t *testing.T) {
	e := newEnv(t)
	pm, token := e.user(permissions.RoleProjectManager)

	w := e.do("POST", "/api/clients", token, gin.H{"companyType": "company", "email": "not-an-email"})
	env := decode(t, w)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Error.Fields, "name")
	assert.Contains(t, env.Error.Fields, "email")

	var c models.Client
	data(t, e.do("POST", "/api/clients", token, gin.H{"name": "Harbour Developments", "companyType": "company", "createdBy": "someone-else"}), http.StatusCreated, &c)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, pm.ID, c.CreatedBy)
	data(t, e.do("POST", "/api/clients", token, gin.H{"name": "Jane Doe", "companyType": "individual"}), http.StatusCreated, nil)

	var items []models.Client
	w = e.do("GET", "/api/clients?search=harbour&per_page=5", token, nil)
	data(t, w, http.StatusOK, &items)
	require.Len(t, items, 1)
	assert.Equal(t, c.ID, items[0].ID)
	var meta query.Meta
	require.NoError(t, jsonUnmarshal(decode(t, w).Meta, &meta))
	assert.Equal(t, query.Meta{Page: 1, PerPage: 5, Total: 1, TotalPages: 1}, meta)

	data(t, e.do("GET", "/api/clients?company_type=individual", token, nil), http.StatusOK, &items)
	require.Len(t, items, 1)
	assert.Equal(t, "Jane Doe", items[0].Name)

	var updated models.Client
	data(t, e.do("PUT", "/api/clients/"+c.ID, token, gin.H{"name": "Harbour Dev Ltd", "companyType": "company"}), http.StatusOK, &updated)
	assert.Equal(t, "Harbour Dev Ltd", updated.Name)
	assert.Equal(t, pm.ID, updated.CreatedBy)
	assert.True(t, updated.CreatedAt.Equal(c.CreatedAt))

	// the cached list reflects the write
	data(t, e.do("GET", "/api/clients?search=harbour&per_page=5", token, nil), http.StatusOK, &items)
	require.Len(t, items, 1)
	assert.Equal(t, "Harbour Dev Ltd", items[0].Name)

	data(t, e.do("DELETE", "/api/clients/"+c.ID, token, nil), http.StatusOK, nil)
	assert.Equal(t, "not_found", errorCode(t, e.do("GET", "/api/clients/"+c.ID, token, nil), http.StatusNotFound))
	errorCode(t, e.do("DELETE", "/api/clients/"+c.ID, token, nil), http.StatusNotFound)
	errorCode(t, e.do("PUT", "/api/clients/"+c.ID, token, gin.H{"name": "Ghost"}), http.StatusNotFound)
}

func TestProjectValidation(t *testing.T) {
	e := newEnv(t)
	_, token := e.user(permissions.RoleManagement)
	projectID := e.seedProject(token)

	w := e.do("POST", "/api/projects", token, gin.H{"code": "X-1", "name": "Orphan", "clientId": "missing"})
	assert.Contains(t, decode(t, w).Error.Fields, "clientId")

	var p models.Project
	data(t, e.do("GET", "/api/projects/"+projectID, token, nil), http.StatusOK, &p)
	assert.Equal(t, models.ProjectPlanning, p.Status)

	w = e.do("PUT", "/api/projects/"+projectID, token, gin.H{
		"code": p.Code, "name": p.Name, "clientId": p.ClientID,
		"startDate": "2026-05-01T00:00:00Z", "endDate": "2026-04-01T00:00:00Z",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w).Error.Fields, "endDate")

	w = e.do("POST", "/api/projects", token, gin.H{"code": p.Code, "name": "Duplicate", "clientId": p.ClientID})
	assert.Equal(t, "conflict", errorCode(t, w, http.StatusConflict))

	var milestones []interface{}
	data(t, e.do("GET", "/api/projects/"+projectID+"/milestones", token, nil), http.StatusOK, &milestones)
	assert.Empty(t, milestones)
}

func TestDocumentStatusIsServerOwned(t *testing.T) {
	e := newEnv(t)
	_, token := e.user(permissions.RoleTechnicalLead)
	_, mgmt := e.user(permissions.RoleManagement)
	projectID := e.seedProject(mgmt)

	var spec models.MaterialSpec
	data(t, e.do("POST", "/api/material-specs", token, gin.H{
		"projectId": projectID, "name": "C30 concrete", "quantity": 40, "unit": "m3", "unitPrice": 120, "status": "approved",
	}), http.StatusCreated, &spec)
	assert.Equal(t, models.DocDraft, spec.Status)

	data(t, e.do("PUT", "/api/material-specs/"+spec.ID, token, gin.H{
		"projectId": projectID, "name": "C35 concrete", "quantity": 40, "unit": "m3", "unitPrice": 130, "status": "approved",
	}), http.StatusOK, &spec)
	assert.Equal(t, models.DocDraft, spec.Status)
	assert.Equal(t, "C35 concrete", spec.Name)

	var rep models.ConstructionReport
	data(t, e.do("POST", "/api/construction-reports", token, gin.H{
		"projectId": projectID, "reportDate": "2026-10-01T00:00:00Z", "workSummary": "Poured slab", "status": "approved",
	}), http.StatusCreated, &rep)
	assert.Equal(t, models.DocDraft, rep.Status)
	assert.Equal(t, []string{}, rep.PhotoKeys)

	errorCode(t, e.do("POST", "/api/construction-reports", token, gin.H{
		"projectId": "missing", "reportDate": "2026-10-01T00:00:00Z", "workSummary": "x",
	}), http.StatusBadRequest)
}
