package sqlinline

// QCreateJobWithCredit takes one credit and inserts the pending job in a
// single statement. No row comes back when the balance is already zero.
const QCreateJobWithCredit = `--sql a375f9c2-c7bb-4396-9955-4ba6a9811988
with
reserved as (
  update profiles p
  set credits = p.credits - 1
  where p.id = $1::text
    and p.credits > 0
  returning p.id, p.credits
),
ins_job as (
  insert into jobs (id, user_id, image_url, style_id, status, created_at, updated_at)
  select gen_random_uuid(), r.id, $2::text, $3::text, 'pending', now(), now()
  from reserved r
  returning id, user_id, image_url, style_id, status, result_url, created_at
)
select
  j.id::text,
  j.user_id,
  j.image_url,
  j.style_id,
  j.status,
  j.result_url,
  j.created_at,
  r.credits
from ins_job j
cross join reserved r;
`

const QSelectJobByID = `--sql 573aec39-64a2-41a5-8a62-23b42d4be7b1
select id::text, user_id, image_url, style_id, status, result_url, created_at
from jobs
where id = $1::uuid
limit 1;
`

const QClaimPendingJob = `--sql 1fb8f971-4d29-4b6f-9b4d-6aa6e1ce7ab6
with next_job as (
    select id
    from jobs
    where status = 'pending'
    order by created_at asc
    for update skip locked
    limit 1
)
update jobs j
set status = 'processing', updated_at = now()
from next_job
where j.id = next_job.id
returning j.id::text, j.user_id, j.image_url, j.style_id, j.status, j.result_url, j.created_at;
`

const QCompleteJob = `--sql 69b10c7a-4f2b-41d4-be0c-e9d96fce165d
update jobs
set status = 'done', result_url = $2::text, updated_at = now()
where id = $1::uuid
  and status = 'processing';
`

// QFailJobRefund marks a processing job failed and gives its credit back.
// Data-modifying CTEs always run, so the refund happens only when the job
// update matched.
const QFailJobRefund = `--sql 78d3b517-7103-4e29-8ff9-0e799695cb2a
with
failed as (
  update jobs
  set status = 'failed', updated_at = now()
  where id = $1::uuid
    and status = 'processing'
  returning user_id
),
refunded as (
  update profiles p
  set credits = p.credits + 1
  from failed f
  where p.id = f.user_id
  returning p.id
)
select count(*) from failed;
`

const QRequeueStaleJobs = `--sql 7bf3c1de-bf55-4d5e-bc9a-980fa5b5eece
update jobs
set status = 'pending', updated_at = now()
where status = 'processing'
  and updated_at < now() - make_interval(secs => $1::int);
`
