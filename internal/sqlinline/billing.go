package sqlinline

// QApplyBillingCredits records the event and credits the profile. A replayed
// event id inserts nothing, so the statement returns no row.
const QApplyBillingCredits = `--sql ebf3cb9d-a0ea-4e09-9fb1-1c1499a778ea
with
event as (
  insert into billing_events (event_id, user_id, credits, created_at)
  values ($1::text, $2::text, $3::int, now())
  on conflict (event_id) do nothing
  returning user_id, credits
),
credited as (
  insert into profiles (id, credits, created_at)
  select e.user_id, e.credits, now()
  from event e
  on conflict (id) do update set credits = profiles.credits + excluded.credits
  returning credits
)
select credits from credited;
`
