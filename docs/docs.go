// Package docs registers the OpenAPI description served under /swagger/.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/signup": {"post": {"tags": ["users"], "summary": "Register a new user", "parameters": [{"in": "body", "name": "user", "required": true, "schema": {"$ref": "#/definitions/users.SignUpRequest"}}], "responses": {"201": {"description": "User created successfully"}, "400": {"description": "Bad request"}, "409": {"description": "Email already registered"}}}},
        "/signin": {"post": {"tags": ["users"], "summary": "Authenticate a user", "parameters": [{"in": "body", "name": "user", "required": true, "schema": {"$ref": "#/definitions/users.SignInRequest"}}], "responses": {"200": {"description": "Token issued"}, "401": {"description": "Unauthorized"}}}},
        "/videos": {"post": {"security": [{"BearerAuth": []}], "tags": ["videos"], "summary": "Upload a résumé video", "consumes": ["multipart/form-data"], "parameters": [{"in": "formData", "name": "file", "type": "file", "required": true}, {"in": "formData", "name": "title", "type": "string", "required": true}, {"in": "formData", "name": "duration_seconds", "type": "integer"}, {"in": "formData", "name": "resume_id", "type": "string"}], "responses": {"201": {"description": "Video uploaded", "schema": {"$ref": "#/definitions/types.Video"}}, "413": {"description": "File too large"}, "415": {"description": "Unsupported media type"}}}},
        "/videos/{id}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["videos"], "summary": "Get video", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Video"}}, "404": {"description": "Video not found"}}},
            "patch": {"security": [{"BearerAuth": []}], "tags": ["videos"], "summary": "Update video metadata", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}, {"in": "body", "name": "update", "required": true, "schema": {"$ref": "#/definitions/types.VideoMetadataUpdate"}}], "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}},
            "delete": {"security": [{"BearerAuth": []}], "tags": ["videos"], "summary": "Delete video", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}], "responses": {"200": {"description": "Video deleted"}, "403": {"description": "Forbidden"}}}
        },
        "/videos/{id}/access": {"post": {"security": [{"BearerAuth": []}], "tags": ["access"], "summary": "Request a stream URL for a résumé video", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}, {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/types.AccessRequest"}}], "responses": {"200": {"description": "Access granted", "schema": {"$ref": "#/definitions/types.AccessGrant"}}, "403": {"description": "Forbidden"}, "404": {"description": "Not found"}, "429": {"description": "View limit reached"}, "503": {"description": "Upstream unavailable"}}}},
        "/videos/{id}/views": {"get": {"security": [{"BearerAuth": []}], "tags": ["access"], "summary": "Get remaining views", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}, {"in": "query", "name": "application_id", "type": "string", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.LimitStatus"}}}}},
        "/videos/{id}/stream": {"get": {"tags": ["access"], "summary": "Stream a résumé video", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}, {"in": "query", "name": "token", "type": "string", "required": true}], "responses": {"307": {"description": "Redirect to the hosted video"}, "401": {"description": "Token invalid or expired"}}}},
        "/resumes": {"post": {"security": [{"BearerAuth": []}], "tags": ["applications"], "summary": "Create a résumé", "parameters": [{"in": "body", "name": "resume", "required": true, "schema": {"$ref": "#/definitions/types.ResumeCreateRequest"}}], "responses": {"201": {"description": "Created"}}}},
        "/applications": {"post": {"security": [{"BearerAuth": []}], "tags": ["applications"], "summary": "Apply to an employer", "parameters": [{"in": "body", "name": "application", "required": true, "schema": {"$ref": "#/definitions/types.ApplicationCreateRequest"}}], "responses": {"201": {"description": "Created"}, "422": {"description": "Employer does not exist"}}}}
    },
    "definitions": {
        "users.SignUpRequest": {"type": "object", "required": ["email", "password", "role"], "properties": {"email": {"type": "string"}, "password": {"type": "string"}, "role": {"type": "string", "enum": ["job_seeker", "employer"]}}},
        "users.SignInRequest": {"type": "object", "required": ["email", "password"], "properties": {"email": {"type": "string"}, "password": {"type": "string"}}},
        "types.Video": {"type": "object", "properties": {"id": {"type": "string"}, "job_seeker_id": {"type": "string"}, "kind": {"type": "string"}, "title": {"type": "string"}, "is_public": {"type": "boolean"}, "download_protected": {"type": "boolean"}, "status": {"type": "string"}, "thumbnail_url": {"type": "string"}, "duration_seconds": {"type": "integer"}, "created_at": {"type": "string"}, "updated_at": {"type": "string"}}},
        "types.VideoMetadataUpdate": {"type": "object", "properties": {"title": {"type": "string"}, "thumbnail_url": {"type": "string"}, "duration_seconds": {"type": "integer"}}},
        "types.AccessRequest": {"type": "object", "required": ["application_id"], "properties": {"application_id": {"type": "string"}}},
        "types.AccessGrant": {"type": "object", "properties": {"url": {"type": "string"}, "expires_at": {"type": "string"}, "views_remaining": {"type": "integer"}}},
        "types.LimitStatus": {"type": "object", "properties": {"allowed": {"type": "boolean"}, "views_remaining": {"type": "integer"}}},
        "types.ResumeCreateRequest": {"type": "object", "required": ["title"], "properties": {"title": {"type": "string"}, "video_id": {"type": "string"}}},
        "types.ApplicationCreateRequest": {"type": "object", "required": ["employer_id", "resume_id"], "properties": {"employer_id": {"type": "string"}, "resume_id": {"type": "string"}}}
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Résumé Video Service API",
	Description:      "Private résumé videos viewed by employers under a per-application quota.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
