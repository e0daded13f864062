package api

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
)

const componentSchemas = "#/components/schemas/"

// componentRef points at a named component while carrying its schema, so the
// document validates without a loader pass.
func componentRef(name string, schema *openapi3.Schema) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef(componentSchemas+name, schema)
}

// OpenAPIDocument describes the routes registered by Handler.Register.
// An empty version is reported as "dev".
func OpenAPIDocument(version string) *openapi3.T {
	if version == "" {
		version = "dev"
	}
	id := &openapi3.Schema{OneOf: openapi3.SchemaRefs{
		openapi3.NewStringSchema().NewRef(),
		openapi3.NewFloat64Schema().NewRef(),
	}}
	id.Description = "String and numeric ids never compare equal."

	injury := openapi3.NewObjectSchema().
		WithProperty("id", id).
		WithAnyAdditionalProperties()
	injury.Description = "Opaque injury record. Only id is interpreted."

	injuryRef := componentRef("Injury", injury)

	list := openapi3.NewArraySchema()
	list.Items = injuryRef
	listRef := componentRef("InjuryList", list)

	apiErr := openapi3.NewObjectSchema().
		WithProperty("error", openapi3.NewStringSchema()).
		WithProperty("message", openapi3.NewStringSchema()).
		WithProperty("request_id", openapi3.NewStringSchema())
	errorRef := componentRef("Error", apiErr)

	health := openapi3.NewObjectSchema().
		WithProperty("status", openapi3.NewStringSchema().WithEnum("healthy", "degraded", "unhealthy")).
		WithProperty("checks", openapi3.NewArraySchema().WithItems(openapi3.NewObjectSchema().WithAnyAdditionalProperties()))
	healthRef := componentRef("Health", health)

	pathID := openapi3.NewPathParameter("id").WithSchema(openapi3.NewStringSchema())
	stringID := openapi3.NewQueryParameter("string_id").WithSchema(openapi3.NewBoolSchema())
	stringID.Description = "Treat a numeric-looking path id as a string."

	bearer := openapi3.NewJWTSecurityScheme()
	bearer.Description = "HS256 token with injuries:read or injuries:write scope, enforced on /injuries when auth is enabled."

	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "injurystore",
			Description: "Ordered injury records persisted as one JSON array in a key-value backend.",
			Version:     version,
		},
		Components: &openapi3.Components{
			Schemas: openapi3.Schemas{
				"Injury":     injury.NewRef(),
				"InjuryList": list.NewRef(),
				"Error":      apiErr.NewRef(),
				"Health":     health.NewRef(),
			},
			SecuritySchemes: openapi3.SecuritySchemes{
				"bearerAuth": &openapi3.SecuritySchemeRef{Value: bearer},
			},
		},
		Paths: openapi3.NewPaths(
			openapi3.WithPath("/injuries", &openapi3.PathItem{
				Get: operation("listInjuries", "List every injury in stored order", nil, errorRef,
					response(http.StatusOK, "Current collection", listRef)),
				Put: operation("saveInjuries", "Replace the whole collection", body(listRef), errorRef,
					response(http.StatusNoContent, "Saved", nil),
					response(http.StatusBadRequest, "Malformed JSON", errorRef)),
				Post: operation("addInjury", "Append one injury", body(injuryRef), errorRef,
					response(http.StatusCreated, "Collection after the append", listRef),
					response(http.StatusBadRequest, "Malformed JSON", errorRef)),
				Delete: operation("clearInjuries", "Remove the stored collection", nil, errorRef,
					response(http.StatusNoContent, "Cleared", nil)),
			}),
			openapi3.WithPath("/injuries/{id}", &openapi3.PathItem{
				Parameters: openapi3.Parameters{{Value: pathID}, {Value: stringID}},
				Put: operation("updateInjury", "Replace the first injury with a matching id", body(injuryRef), errorRef,
					response(http.StatusOK, "Collection after the update", listRef),
					response(http.StatusBadRequest, "Malformed JSON", errorRef)),
				Delete: operation("deleteInjury", "Remove every injury with a matching id", nil, errorRef,
					response(http.StatusOK, "Collection after the delete", listRef)),
			}),
			openapi3.WithPath("/healthz", &openapi3.PathItem{
				Get: operation("health", "Backend health", nil, errorRef,
					response(http.StatusOK, "Healthy or degraded", healthRef),
					response(http.StatusServiceUnavailable, "Unhealthy", healthRef)),
			}),
		),
	}
	return doc
}

func operation(id, summary string, req *openapi3.RequestBodyRef, errorRef *openapi3.SchemaRef, responses ...openapi3.NewResponsesOption) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = id
	op.Summary = summary
	op.Tags = []string{"injuries"}
	op.RequestBody = req
	responses = append(responses,
		response(http.StatusInternalServerError, "Persistence failure", errorRef))
	op.Responses = openapi3.NewResponses(responses...)
	return op
}

func body(ref *openapi3.SchemaRef) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().
		WithRequired(true).
		WithJSONSchemaRef(ref)}
}

func response(status int, description string, ref *openapi3.SchemaRef) openapi3.NewResponsesOption {
	resp := openapi3.NewResponse().WithDescription(description)
	if ref != nil {
		resp = resp.WithJSONSchemaRef(ref)
	}
	return openapi3.WithStatus(status, &openapi3.ResponseRef{Value: resp})
}
