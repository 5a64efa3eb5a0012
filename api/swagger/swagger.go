package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Roster API",
        "description": "Student roster, attendance and QR scanning service",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Students", "description": "Roster management and search"},
        {"name": "Attendance", "description": "Attendance log"},
        {"name": "Dashboard", "description": "Absentees, leaderboard and birthdays"},
        {"name": "Scanner", "description": "Cameras and QR capture sessions"}
    ],
    "paths": {
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "gender", "in": "query", "type": "string", "enum": ["all", "male", "female"]},
                    {"name": "type", "in": "query", "type": "string", "enum": ["all", "new", "returning"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Record store unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Students"],
                "summary": "Create student",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StudentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/export": {
            "get": {
                "tags": ["Students"],
                "summary": "Export the filtered roster",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "gender", "in": "query", "type": "string"},
                    {"name": "type", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "File"}}
            }
        },
        "/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get student detail",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Students"],
                "summary": "Update student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StudentRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "delete": {
                "tags": ["Students"],
                "summary": "Delete student",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/students/{id}/qr": {
            "get": {
                "tags": ["Students"],
                "summary": "Render the student's attendance QR code",
                "produces": ["image/png"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "size", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "PNG image"}}
            }
        },
        "/attendance": {
            "get": {
                "tags": ["Attendance"],
                "summary": "List attendance records",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Attendance"],
                "summary": "Record attendance manually",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordAttendanceRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/dashboard": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Dashboard widgets",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/dashboard/absentees": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Students absent on the latest attendance day",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/dashboard/top-attendees": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Attendance leaderboard",
                "parameters": [{"name": "limit", "in": "query", "type": "integer"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/dashboard/top-attendees/export": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Export the attendance leaderboard",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "File"}}
            }
        },
        "/dashboard/birthdays": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Upcoming birthdays",
                "parameters": [{"name": "days", "in": "query", "type": "integer"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/cameras": {
            "get": {
                "tags": ["Scanner"],
                "summary": "List registered cameras",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Scanner"],
                "summary": "Register a camera",
                "parameters": [
                    {"name": "payload", "in": "body", "schema": {"type": "object", "properties": {"label": {"type": "string"}}}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/cameras/{id}": {
            "delete": {
                "tags": ["Scanner"],
                "summary": "Unregister a camera",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Removed"}}
            }
        },
        "/cameras/{id}/frames": {
            "post": {
                "tags": ["Scanner"],
                "summary": "Push a camera frame",
                "consumes": ["image/png", "image/jpeg", "image/webp", "multipart/form-data"],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "202": {"description": "Accepted"},
                    "409": {"description": "No active session", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scan-sessions": {
            "post": {
                "tags": ["Scanner"],
                "summary": "Start a QR capture session",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Camera busy", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Camera error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scan-sessions/{id}": {
            "get": {
                "tags": ["Scanner"],
                "summary": "Get a capture session",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "delete": {
                "tags": ["Scanner"],
                "summary": "Cancel a capture session",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/scan-sessions/{id}/frames": {
            "post": {
                "tags": ["Scanner"],
                "summary": "Upload an image to a session running without a camera",
                "consumes": ["image/png", "image/jpeg", "image/webp", "multipart/form-data"],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"202": {"description": "Accepted"}}
            }
        }
    },
    "definitions": {
        "StudentRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "phone": {"type": "string", "pattern": "^(010|011|012|015)\\d{8}$"},
                "fatherPhone": {"type": "string", "pattern": "^(010|011|012|015)\\d{8}$"},
                "motherPhone": {"type": "string", "pattern": "^(010|011|012|015)\\d{8}$"},
                "dateOfBirth": {"type": "string", "format": "date"},
                "yearOfStudy": {"type": "string"},
                "churchFatherName": {"type": "string"},
                "address": {"type": "string"},
                "gender": {"type": "string", "enum": ["male", "female"]},
                "studentType": {"type": "string", "enum": ["new", "returning"]}
            }
        },
        "RecordAttendanceRequest": {
            "type": "object",
            "required": ["studentId"],
            "properties": {
                "studentId": {"type": "string"},
                "present": {"type": "boolean"},
                "date": {"type": "string", "format": "date-time"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
        "Notification": {
            "type": "object",
            "properties": {
                "level": {"type": "string", "enum": ["success", "error"]},
                "message": {"type": "string"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {
                    "type": "object",
                    "properties": {
                        "notification": {"$ref": "#/definitions/Notification"},
                        "stale": {"type": "boolean"},
                        "cache_hit": {"type": "boolean"}
                    }
                }
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
