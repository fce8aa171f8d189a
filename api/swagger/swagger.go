package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Exam Room Allocator API",
        "description": "Seats student cohorts into exam rooms for every scheduled exam slot.",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Allocation", "description": "Room allocation runs and generated files"},
        {"name": "Notices", "description": "Department notifications"},
        {"name": "Observability", "description": "Service counters"}
    ],
    "paths": {
        "/validate-csv": {
            "post": {
                "tags": ["Allocation"],
                "summary": "Validate CSV headers",
                "consumes": ["multipart/form-data"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "file", "in": "formData", "type": "file", "required": true},
                    {"name": "type", "in": "formData", "type": "string", "required": true, "enum": ["students", "courses", "rooms"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ValidateCSVEnvelope"}},
                    "400": {"description": "No file uploaded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/allocate": {
            "post": {
                "tags": ["Allocation"],
                "summary": "Allocate exam rooms",
                "description": "Seats every cohort with an exam in each slot and returns the generated files.",
                "consumes": ["multipart/form-data"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "students", "in": "formData", "type": "file", "required": true},
                    {"name": "courses", "in": "formData", "type": "file", "required": true},
                    {"name": "rooms", "in": "formData", "type": "file", "required": true},
                    {"name": "cohortOrder", "in": "formData", "type": "string", "enum": ["largest_first", "insertion"]},
                    {"name": "formats", "in": "formData", "type": "string", "description": "csv, pdf"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/AllocateEnvelope"}},
                    "400": {"description": "All three CSV files are required", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "No usable rooms", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/allocations/jobs": {
            "post": {
                "tags": ["Allocation"],
                "summary": "Queue an allocation run",
                "consumes": ["multipart/form-data"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "students", "in": "formData", "type": "file", "required": true},
                    {"name": "courses", "in": "formData", "type": "file", "required": true},
                    {"name": "rooms", "in": "formData", "type": "file", "required": true},
                    {"name": "cohortOrder", "in": "formData", "type": "string", "enum": ["largest_first", "insertion"]},
                    {"name": "formats", "in": "formData", "type": "string"}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Jobs disabled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/allocations/jobs/{id}": {
            "get": {
                "tags": ["Allocation"],
                "summary": "Allocation job status",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/allocations/files/{token}": {
            "get": {
                "tags": ["Allocation"],
                "summary": "Download a generated file",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "token", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "File expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/send-email": {
            "post": {
                "tags": ["Notices"],
                "summary": "Send an allocation file to a department",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SendNoticeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Department and filePath required", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["Observability"],
                "summary": "Service counters",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "SendNoticeRequest": {
            "type": "object",
            "required": ["department", "filePath"],
            "properties": {
                "department": {"type": "string"},
                "filePath": {"type": "string"}
            }
        },
        "ValidateCSVResponse": {
            "type": "object",
            "properties": {
                "valid": {"type": "boolean"},
                "errors": {"type": "array", "items": {"type": "string"}},
                "headers": {"type": "array", "items": {"type": "string"}}
            }
        },
        "ValidateCSVEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/ValidateCSVResponse"}
            }
        },
        "GeneratedFile": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "kind": {"type": "string", "enum": ["allocation", "metrics", "shortages"]},
                "format": {"type": "string"},
                "department": {"type": "string"},
                "year": {"type": "string"},
                "date": {"type": "string"},
                "time": {"type": "string"},
                "rows": {"type": "integer"},
                "path": {"type": "string"},
                "url": {"type": "string"},
                "expiresAt": {"type": "string", "format": "date-time"}
            }
        },
        "MetricsRow": {
            "type": "object",
            "properties": {
                "department": {"type": "string"},
                "year": {"type": "string"},
                "date": {"type": "string"},
                "time": {"type": "string"},
                "conflicts": {"type": "integer"},
                "timeslots": {"type": "integer"},
                "avgUtilization": {"type": "number"},
                "fairnessStdDev": {"type": "number"},
                "runtime": {"type": "number"}
            }
        },
        "Shortage": {
            "type": "object",
            "properties": {
                "department": {"type": "string"},
                "year": {"type": "string"},
                "section": {"type": "string"},
                "date": {"type": "string"},
                "time": {"type": "string"},
                "cohortSize": {"type": "integer"},
                "seated": {"type": "integer"},
                "unseated": {"type": "integer"}
            }
        },
        "AllocateResponse": {
            "type": "object",
            "properties": {
                "runId": {"type": "string"},
                "fingerprint": {"type": "string"},
                "cohortOrder": {"type": "string"},
                "cached": {"type": "boolean"},
                "summary": {"type": "object"},
                "files": {"type": "array", "items": {"$ref": "#/definitions/GeneratedFile"}},
                "outputFiles": {"type": "object", "additionalProperties": {"type": "string"}},
                "metrics": {"type": "array", "items": {"$ref": "#/definitions/MetricsRow"}},
                "slots": {"type": "array", "items": {"type": "object"}},
                "shortages": {"type": "array", "items": {"$ref": "#/definitions/Shortage"}},
                "warnings": {"type": "array", "items": {"type": "object"}},
                "generatedAt": {"type": "string", "format": "date-time"}
            }
        },
        "AllocateEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/AllocateResponse"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
