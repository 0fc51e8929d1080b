package mcpserver

// DigestFormatContract describes the canonical long-format digest file
// structure that LLM consumers should follow when generating digests.
const DigestFormatContract = `# Dagaz Digest Format Contract

Every digest file uploaded to Dagaz MUST follow this structure.

## Structure

A digest is a tab-separated values (TSV) file in long format: the first line
is the header, then one row per (subject, session, variable) observation.

` + "```" + `tsv
participant_id	bids_id	session	pipeline_name	pipeline_version	pipeline_starttime	pipeline_complete
sub-01	sub-01	ses-01	fmriprep	20.2.7	2024-03-01 10:00:00	SUCCESS
sub-01	sub-01	ses-02	fmriprep	20.2.7	2024-03-02 10:00:00	INCOMPLETE
sub-02	sub-02	ses-01	freesurfer	7.3.2		UNAVAILABLE
` + "```" + `

## Rules

1. **One schema per file.** Columns are defined by the schema the file is
   validated against (imaging or phenotypic by default; ask for the schema
   via the API if unsure).
2. **All required columns must be present** and no columns outside the
   schema may appear. Column order is free.
3. **Exactly one subject, session, and variable per row.** Identity cells
   (participant_id, session, and the variable columns) must be non-empty.
4. **No duplicate (subject, session, variable) triples.** Re-observations
   replace the old row; they do not add a second one.
5. **Status values** come from the schema's declared domain. The imaging
   schema accepts SUCCESS, FAIL, INCOMPLETE, UNAVAILABLE (matched
   case-insensitively, normalized to upper case).
6. **Numeric columns** (e.g. phenotypic assessment_score) must parse as
   numbers; an empty cell means the score is not available.
7. **Encoding** is UTF-8. Fields must not contain unescaped tab characters.

## Validation

Uploads are validated as a whole: every violation in the file is reported
together with its row number and column, and nothing is indexed until the
file is clean. One dataset per file.
`
