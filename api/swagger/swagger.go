package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Timetable Engine",
        "description": "Constraint-based academic timetable generation service",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Generator", "description": "Snapshot submission and run launch"},
        {"name": "Runs", "description": "Run status, results, cancellation and progress streams"},
        {"name": "Timetables", "description": "Stored timetable versions and exports"}
    ],
    "paths": {
        "/timetables/generate": {
            "post": {
                "tags": ["Generator"],
                "summary": "Generate a timetable from a snapshot",
                "description": "Queues an optimization run and returns 202 with polling and event URLs. Small snapshots may pass wait=true to run inline and receive the final result directly.",
                "parameters": [
                    {"name": "wait", "in": "query", "type": "boolean", "description": "Run synchronously (small snapshots only)"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateTimetableRequest"}}
                ],
                "responses": {
                    "202": {"description": "Run accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "200": {"description": "Synchronous result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Rejected snapshot", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/runs/{id}": {
            "get": {
                "tags": ["Runs"],
                "summary": "Get run status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown run", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/runs/{id}/result": {
            "get": {
                "tags": ["Runs"],
                "summary": "Get the final run result",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown run", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Run still in progress", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/runs/{id}/cancel": {
            "post": {
                "tags": ["Runs"],
                "summary": "Cancel a queued or running run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "202": {"description": "Cancellation requested", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown run", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Run already finished", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/runs/{id}/events": {
            "get": {
                "tags": ["Runs"],
                "summary": "Stream run progress events",
                "description": "Upgrades to a websocket and relays progress events as JSON frames. The stream replays the latest event on attach and closes after the terminal event.",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "101": {"description": "Switching protocols"},
                    "404": {"description": "Unknown run", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables": {
            "get": {
                "tags": ["Timetables"],
                "summary": "List stored timetable versions",
                "parameters": [
                    {"name": "termId", "in": "query", "type": "string"},
                    {"name": "program", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "description": "DRAFT, PUBLISHED or ARCHIVED"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Get a timetable version",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown timetable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Timetables"],
                "summary": "Delete a draft or archived timetable",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "Timetable is published", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}/slots": {
            "get": {
                "tags": ["Timetables"],
                "summary": "List the placed slots of a timetable",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}/publish": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Publish a draft timetable",
                "description": "Promotes the draft to PUBLISHED and archives the previously published version of the same term and program.",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Not a draft", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}/export.csv": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Export a timetable as CSV",
                "produces": ["text/csv"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "CSV file"}
                }
            }
        },
        "/timetables/{id}/export.pdf": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Export a timetable as weekly grid PDF",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF file"},
                    "412": {"description": "Timetable has no slots", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "GenerateTimetableRequest": {
            "type": "object",
            "properties": {
                "termId": {"type": "string"},
                "program": {"type": "string"},
                "persist": {"type": "boolean"},
                "snapshot": {"$ref": "#/definitions/Snapshot"}
            },
            "required": ["termId", "snapshot"]
        },
        "Snapshot": {
            "type": "object",
            "properties": {
                "teachers": {"type": "array", "items": {"type": "object"}},
                "classrooms": {"type": "array", "items": {"type": "object"}},
                "courses": {"type": "array", "items": {"type": "object"}},
                "settings": {"$ref": "#/definitions/Settings"}
            }
        },
        "Settings": {
            "type": "object",
            "properties": {
                "algorithm": {"type": "string", "description": "auto, greedy, backtracking, simulated_annealing, genetic, csp or hybrid"},
                "workingDays": {"type": "array", "items": {"type": "string"}},
                "startTime": {"type": "string"},
                "endTime": {"type": "string"},
                "slotDuration": {"type": "integer"},
                "breakSlots": {"type": "array", "items": {"type": "object"}},
                "enforceBreaks": {"type": "boolean"},
                "balanceWorkload": {"type": "boolean"},
                "seed": {"type": "integer"},
                "deadline": {"type": "integer", "description": "run deadline in milliseconds"}
            }
        },
        "RunAccepted": {
            "type": "object",
            "properties": {
                "runId": {"type": "string"},
                "status": {"type": "string"},
                "statusUrl": {"type": "string"},
                "eventsUrl": {"type": "string"}
            }
        },
        "RunStatus": {
            "type": "object",
            "properties": {
                "runId": {"type": "string"},
                "termId": {"type": "string"},
                "algorithm": {"type": "string"},
                "status": {"type": "string"},
                "percent": {"type": "number"},
                "bestFitness": {"type": "number"},
                "iteration": {"type": "integer"},
                "sessionCount": {"type": "integer"},
                "unscheduled": {"type": "integer"},
                "error": {"type": "string"},
                "timetableId": {"type": "string"},
                "createdAt": {"type": "string"},
                "finishedAt": {"type": "string"}
            }
        },
        "RunResult": {
            "type": "object",
            "properties": {
                "runId": {"type": "string"},
                "algorithm": {"type": "string"},
                "status": {"type": "string"},
                "assignments": {"type": "array", "items": {"type": "object"}},
                "unscheduled": {"type": "array", "items": {"type": "object"}},
                "conflicts": {"type": "array", "items": {"type": "object"}},
                "metrics": {"$ref": "#/definitions/RunMetrics"},
                "warnings": {"type": "array", "items": {"type": "string"}},
                "failure": {"$ref": "#/definitions/APIError"}
            }
        },
        "RunMetrics": {
            "type": "object",
            "properties": {
                "durationMs": {"type": "integer"},
                "iterations": {"type": "integer"},
                "backtracks": {"type": "integer"},
                "generations": {"type": "integer"},
                "hardViolationCount": {"type": "integer"},
                "softScore": {"type": "number"},
                "fitness": {"type": "number"},
                "sessionCount": {"type": "integer"},
                "scheduledCount": {"type": "integer"}
            }
        },
        "Timetable": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "term_id": {"type": "string"},
                "program": {"type": "string"},
                "version": {"type": "integer"},
                "status": {"type": "string"},
                "algorithm": {"type": "string"},
                "fitness": {"type": "number"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "TimetableSlot": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "timetable_id": {"type": "string"},
                "session_key": {"type": "string"},
                "course_id": {"type": "string"},
                "course_code": {"type": "string"},
                "session_type": {"type": "string"},
                "division_id": {"type": "string"},
                "batch_id": {"type": "string"},
                "teacher_id": {"type": "string"},
                "teacher_name": {"type": "string"},
                "classroom_id": {"type": "string"},
                "day_of_week": {"type": "string"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"},
                "slot_index": {"type": "integer"}
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
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
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
